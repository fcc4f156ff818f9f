// Package scripts holds the example scripts. They are read from disk when a
// scripts directory is configured and from the embedded copy otherwise.
package scripts

import "embed"

// Script file names, one per example.
const (
	HelloWorld           = "1_hello_world.lua"
	AccessingVariables   = "3_accessing_lua_variables.lua"
	PassingVariables     = "4_passing_variables_to_lua.lua"
	AccessingFunctions   = "5_accessing_lua_functions.lua"
	CallingHostFunctions = "6_calling_external_functions_from_lua.lua"
	ExchangingTables     = "7_exchanging_tables.lua"
)

// FS contains every example script at its file name.
//
//go:embed *.lua
var FS embed.FS
