// Package s3 implements blobstore.Store on Amazon S3.
//
// Snapshots are uploaded as a stream through the S3 transfer manager,
// so a blob of any size can be written without buffering it in memory.
package s3
