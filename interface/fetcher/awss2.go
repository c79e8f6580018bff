package fetcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/eoarchive/data-access/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	awsS2Bucket = "sentinel-s2-l1c"
	awsS2Prefix = "tiles/"
	awsS2Region = "eu-central-1"
)

// AwsS2Fetcher implements Fetcher for the Sentinel-2 L1C requester-pays
// bucket. A data set is the whole tile directory.
type AwsS2Fetcher struct {
	accessKeyId     string
	secretAccessKey string
	bucket          string
	region          string
}

// Name implements Fetcher
func (f *AwsS2Fetcher) Name() string {
	return "AwsS2"
}

// NewAwsS2Fetcher creates a new Fetcher from the Sentinel-2 AWS bucket
func NewAwsS2Fetcher(accessKeyId, secretAccessKey string) *AwsS2Fetcher {
	return &AwsS2Fetcher{
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
		bucket:          awsS2Bucket,
		region:          awsS2Region,
	}
}

// Fetch implements Fetcher
func (f *AwsS2Fetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	key := common.TileKeyPart(identifier)
	if key == "" {
		return fmt.Errorf("AwsS2Fetcher: no tile key in %s", identifier)
	}
	prefix := awsS2Prefix + key + "/"

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(f.accessKeyId, f.secretAccessKey, "")),
		config.WithRegion(f.region),
	)
	if err != nil {
		return fmt.Errorf("AwsS2Fetcher config.LoadDefaultConfig: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})

	paginator := s3.NewListObjectsV2Paginator(client,
		&s3.ListObjectsV2Input{
			Bucket:       aws.String(f.bucket),
			Prefix:       aws.String(prefix),
			RequestPayer: "requester",
		},
		func(o *s3.ListObjectsV2PaginatorOptions) {
			o.Limit = 200 // much more than the typical number of files in a tile (i.e. the pagination mechanism exists but is expected to process only one page)
		},
	)

	found := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("AwsS2Fetcher paginator.NextPage: %w", err)
		}

		for _, object := range page.Contents {
			objectKey := aws.ToString(object.Key)
			localFilePath := path.Join(localDir, strings.TrimPrefix(objectKey, prefix))
			if err := os.MkdirAll(path.Dir(localFilePath), 0755); err != nil {
				return fmt.Errorf("AwsS2Fetcher os.MkdirAll: %w", err)
			}
			if err := downloadSingleObjectToFile(ctx, downloader, f.bucket, objectKey, localFilePath); err != nil {
				return fmt.Errorf("AwsS2Fetcher.%w", err)
			}
			found = true
		}
	}
	if !found {
		return ErrDataSetNotFound{identifier}
	}

	return nil
}

func downloadSingleObjectToFile(ctx context.Context, downloader *manager.Downloader, bucketName, objectKey, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket:       aws.String(bucketName),
		Key:          aws.String(objectKey),
		RequestPayer: "requester",
	})
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to download object %s:%s: %w",
			bucketName, objectKey, err)
	}

	return nil
}
