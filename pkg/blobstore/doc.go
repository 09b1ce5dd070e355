// Package blobstore provides S3-compatible file storage operations.
//
// It offers a simple interface for uploading, retrieving, and managing files
// with automatic MIME detection, validation, and multi-tenant support.
//
// # Basic Usage
//
// Create a storage client and upload files:
//
//	cfg := blobstore.Config{
//		Bucket:    "my-bucket",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
//		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
//	}
//
//	store, err := blobstore.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Upload from form
//	fh, _ := c.FormFile("avatar")
//	info, err := blobstore.PutFile(ctx, store, fh,
//		blobstore.WithPrefix("avatars"),
//		blobstore.WithACL(blobstore.ACLPublicRead),
//	)
//
// # Validation
//
// Use WithValidation for validated uploads:
//
//	info, err := blobstore.PutFile(ctx, store, fh,
//		blobstore.WithValidation(
//			blobstore.MaxSize(5 << 20),  // 5MB
//			blobstore.ImageOnly(),
//		),
//		blobstore.WithTenant(tenantID),
//		blobstore.WithPrefix("avatars"),
//	)
//	if err != nil {
//		var verr *blobstore.FileValidationError
//		if errors.As(err, &verr) {
//			// Handle validation error
//		}
//	}
//
// # URL Generation
//
// Generate URLs for stored files:
//
//	// Signed URL by default; the object's ACL is not consulted
//	url, err := store.URL(ctx, info.Key)
//
//	// Unsigned public URL
//	url, err := store.URL(ctx, info.Key, blobstore.WithPublic())
//
//	// Force signed URL with custom expiry
//	url, err := store.URL(ctx, info.Key,
//		blobstore.WithSigned(time.Hour),
//	)
//
//	// Signed URL with download disposition
//	url, err := store.URL(ctx, info.Key,
//		blobstore.WithDownload("document.pdf"),
//	)
//
// # Multi-Tenant Support
//
// Use WithTenant for tenant isolation:
//
//	info, err := blobstore.PutFile(ctx, store, fh,
//		blobstore.WithTenant(tenantID),
//		blobstore.WithPrefix("documents"),
//	)
//	// Key: {tenant}/{prefix}/{ulid}.{ext}
//
// # Configuration
//
// The Config struct supports environment variables:
//
//	type Config struct {
//		Bucket          string // STORAGE_BUCKET
//		AccessKey       string // STORAGE_ACCESS_KEY
//		SecretKey       string // STORAGE_SECRET_KEY
//		Endpoint        string // STORAGE_ENDPOINT (for MinIO/custom S3)
//		Region          string // STORAGE_REGION (default: us-east-1)
//		PublicURL       string // STORAGE_PUBLIC_URL (CDN URL)
//		DefaultACL      ACL    // STORAGE_DEFAULT_ACL (default: private)
//		PathStyle       bool   // STORAGE_PATH_STYLE (for MinIO)
//		MaxDownloadSize int64  // STORAGE_MAX_DOWNLOAD (default: 50MB)
//	}
package blobstore
