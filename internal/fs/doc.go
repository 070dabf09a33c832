// Package fs abstracts the filesystem calls used to persist leak reports.
//
// Production code uses fs.Default (a [LocalFS]). Tests wrap it in a
// [FaultyFS] to make writes, syncs, closes or renames fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".report-", fs.Fault{FailOnSync: true})
//
// Calls take no context.Context: local filesystem syscalls cannot be
// interrupted. Remote stores (the S3 and MinIO sinks) take a context.
package fs
