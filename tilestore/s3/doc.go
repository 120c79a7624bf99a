// Package s3 implements tilestore.Store for Amazon S3 using aws-sdk-go-v2.
// Writes go through the transfer manager uploader with CRC32C checksums.
package s3
