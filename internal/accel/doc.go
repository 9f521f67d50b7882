// Package accel provides the accelerator abstraction behind the index's
// accelerated mode.
//
// A Device takes a host index and returns a Resident copy that serves
// searches and appends. Structural changes (removal) are not supported on a
// Resident: callers download a host copy, mutate it and upload it again.
//
// The bundled Parallel device keeps the rows partitioned across shards and
// scans them concurrently, charging the resident bytes to a
// resource.Controller.
package accel
