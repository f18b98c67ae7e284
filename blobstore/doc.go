// Package blobstore abstracts durable storage for index snapshots.
//
// A snapshot is written as a single immutable blob and read back
// sequentially, so the interface is stream oriented. Backends exist
// for the local file system, in-memory testing, Amazon S3 and
// MinIO-compatible object stores.
package blobstore
