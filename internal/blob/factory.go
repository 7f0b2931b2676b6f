package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables:
//
//	FLOWCORE_BLOB_DRIVER=fs|s3|memory (default fs)
//	FLOWCORE_BLOB_FS_ROOT=<dir> (fs driver, default ./blobdata)
//	FLOWCORE_BLOB_S3_BUCKET=<bucket> (required for s3)
//	FLOWCORE_BLOB_S3_REGION=<region> (default us-east-1)
//	FLOWCORE_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	FLOWCORE_BLOB_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// OpenFromEnv constructs the blob store selected by the process environment.
func OpenFromEnv(ctx context.Context) (Store, error) {
	driver := Driver(strings.ToLower(os.Getenv("FLOWCORE_BLOB_DRIVER")))
	switch driver {
	case "", DriverFilesystem:
		return NewFilesystem(os.Getenv("FLOWCORE_BLOB_FS_ROOT"))
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		bucket := os.Getenv("FLOWCORE_BLOB_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("FLOWCORE_BLOB_S3_BUCKET required for s3 driver")
		}
		return NewS3(ctx, S3Config{
			Bucket:          bucket,
			Region:          os.Getenv("FLOWCORE_BLOB_S3_REGION"),
			Endpoint:        os.Getenv("FLOWCORE_BLOB_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			PathStyle:       strings.EqualFold(os.Getenv("FLOWCORE_BLOB_S3_PATH_STYLE"), "true"),
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
