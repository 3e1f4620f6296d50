// Package storage exposes files and directories across heterogeneous
// storage services through one entity surface. A File or Dir opened via
// one of the Open constructors owns a single backend session; entities
// spawned from it through GetFile and GetSubdir share that session, the
// tree's metadata store, and its cache.
//
// The root entity's Close releases the session for the whole tree:
//
//	d, err := storage.OpenS3Dir(ctx, creds, "bucket", "data/", nil)
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//
// After the root closes, every operation on every entity of the tree
// fails with a RESOURCE_CLOSED error. Closing a spawned entity does
// nothing.
//
// Entities are not safe for concurrent use; a resource tree assumes
// synchronous, single-goroutine access.
package storage
