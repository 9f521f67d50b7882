// Package cbir indexes images by their feature vectors and retrieves the most
// similar ones, keeping a durable image name attached to every vector.
//
// A collection is addressed by a storage name and an index name. It owns a
// flat nearest-neighbour index persisted as one blob ("<storage>/<index>")
// and a namespace of an identity key-value store that maps names to labels.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("/data")
//	backend, _ := redis.Dial(ctx, redis.Config{Addr: "localhost:6379"})
//	reg := cbir.NewRegistry(store, backend, cbir.WithDimension(128))
//	defer reg.Close()
//
//	ext, _ := extractor.New("histogram", 128)
//	coll, _ := reg.Open(ctx, "storage", "")
//	labels, _ := coll.Retrieval().IndexImage(ctx, ext, png, "a.png")
//	matches, _ := coll.Retrieval().Search(ctx, ext, query, 10)
//
// # Labels
//
// Labels are allocated per collection from the "last_id" counter. The counter
// only advances after the vectors it covers are durable and their names are
// bound. If a write is lost in between, the next IndexImage is issued the same
// label and replaces the unbound vector.
//
// # Multi-collection search
//
// MultiSearchTargets queries several collections, each with the extractor its
// vectors were built with, and merges their results by distance, keeping the
// best k overall. MultiSearch is the shortcut for one shared extractor.
//
// # Concurrency
//
// Searches may run concurrently. A Retrieval built with WithMutationLock
// serializes IndexImage and RemoveImage; collections opened through a Registry
// have the lock enabled.
package cbir
