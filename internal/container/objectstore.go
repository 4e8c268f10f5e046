package container

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/objectstore"
)

var errMissingBucket = errors.New("--s3-bucket is required for the s3 object store")

// ObjectStorePackage provides objectstore.Store for image uploads.
func ObjectStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (objectstore.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.ObjectStore {
		case BackendFilesystem:
			return objectstore.NewFilesystemStore(opts.UploadDir, opts.PublicBaseURL())
		case BackendS3:
			if opts.S3Bucket == "" {
				return nil, errMissingBucket
			}

			cfg, err := do.Invoke[aws.Config](i)
			if err != nil {
				return nil, err
			}

			return objectstore.NewS3Store(s3.NewFromConfig(cfg), opts.S3Bucket, opts.S3Prefix), nil
		default:
			return nil, fmt.Errorf("unknown object store %q", opts.ObjectStore)
		}
	})
}
