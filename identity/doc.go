// Package identity maps external image names to index labels.
//
// A Store is one collection's namespace inside a shared kv.Backend. Every key
// is written as "<storage>:<index>:<key>" and three kinds of keys coexist:
//
//	<name>   -> label, decimal
//	<label>  -> name
//	last_id  -> next label to allocate (absent means 0)
//
// The Store never advances last_id on its own; callers write it once the
// vectors it covers are durable.
package identity
