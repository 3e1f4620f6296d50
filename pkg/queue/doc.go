// Package queue exposes message queues across services through one
// channel surface. A Channel wraps a single queue session; Push
// enqueues with soft failure semantics, Peek inspects without
// consuming, and Poll drives a batched consume loop whose deletion
// timing the caller controls.
//
// Channels are not safe for concurrent use.
package queue
