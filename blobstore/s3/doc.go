// Package s3 provides a BlobStore implementation backed by Amazon S3
// using the AWS SDK for Go v2.
//
// # Basic Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "arrays/")
package s3
