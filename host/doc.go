// Package host provides the Script Host Bridge: one owned interpreter
// session per Session value.
//
// A Session executes scripts from files, filesystems or inline text, reads
// and writes global variables, calls script-defined functions and exposes
// host functions to scripts. Values cross the boundary as
// entities.Value; the interpreter's positional stack never leaks out of
// this package and is balanced after every operation.
//
// A Session is not safe for concurrent use. Open as many as needed; they
// share nothing.
package host
