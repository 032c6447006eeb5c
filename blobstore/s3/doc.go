// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := awss3.NewFromConfig(cfg)
//	store := s3.NewStore(client, "my-bucket", "collections/")
//
//	target, err := collection.OpenStored(ctx, store, "products")
//
// # Features
//
//   - Range reads so matching fetches only the blocks it needs
//   - Multipart uploads for large vector blobs
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
