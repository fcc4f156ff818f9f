// Package ports defines the interfaces the examples depend on.
// host.Session implements Bridge; script sources decide where code is read from.
package ports
