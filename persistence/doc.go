// Package persistence defines the on-disk snapshot format of a vector index
// and the helpers that write it durably.
//
// A snapshot is a fixed 40-byte little-endian header followed by the row
// payload, optionally split into LZ4 or ZSTD compressed blocks:
//
//	magic "CBIX" | version u16 | metric u8 | compression u8 | dimension u32
//	count u64 | raw payload size u64 | stored payload size u64 | crc32 u32
//
// The CRC covers the stored (possibly compressed) payload bytes.
package persistence
