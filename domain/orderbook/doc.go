// Package orderbook implements the in-memory limit order book for one
// trading symbol: a FIFO price level queue, red-black trees per side keyed
// by decimal price, and the price-time priority matching primitives the
// engine drives. The package is single-writer and free of locks, logging,
// and I/O; the service layer serializes access per symbol.
package orderbook
