// Package types defines the shared value types exchanged between the
// storage entities, the transfer engine, the queue channel, and the
// backend capability implementations.
package types
