// Package hostfuncs provides host functions that scripts can call.
//
// A host function is a Handler plus an arity. Handlers see their arguments
// as an ordered Args list and return an ordered list of results; the
// positional stack exchange with the interpreter is handled by the host
// package. Handlers have no interpreter dependency and can be tested in
// isolation or invoked through a HandlerRegistry.
package hostfuncs
