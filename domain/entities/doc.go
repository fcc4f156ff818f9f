// Package entities provides the core domain entities shared by the bridge,
// the host function registry and the examples.
// These types carry no interpreter dependency; conversion to and from
// interpreter values lives in internal/exchange.
package entities
