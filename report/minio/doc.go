// Package minio stores leak reports in MinIO or any S3-compatible service.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	sink := minioreport.NewSink(client, "diagnostics", "leaks/")
package minio
