// Package minio implements tilestore.Store for MinIO and other
// S3-compatible object stores using minio-go. Each tile is one object named
// "<prefix>/<band>/<y>/<x>.tile".
package minio
