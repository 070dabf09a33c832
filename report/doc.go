// Package report formats and persists leak reports.
//
// A leak report is one tab-separated line per live allocation found at
// teardown:
//
//	address	size(hex)	size(decimal)	file	function	line	kind
//
// Reports can be written to any io.Writer with WriteTSV or handed to a Sink.
// FileSink stores them on local disk, optionally compressed; the s3 and minio
// subpackages store them in object storage.
package report
