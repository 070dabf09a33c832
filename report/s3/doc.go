// Package s3 stores leak reports in Amazon S3.
//
// # Basic Usage
//
//	sink, err := s3.New(ctx, "diagnostics", "leaks/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a, _ := slabmem.New(slabmem.WithDebug(true), slabmem.WithReportSink(sink))
//
// Credentials and region come from the default AWS configuration chain.
// Use NewSink to supply a pre-configured uploader.
package s3
