package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	DefaultS3Bucket = "noaa-ghcn-pds"
	DefaultS3Region = "us-east-1"
)

// S3Transport reads from the NOAA open-data bucket on AWS, which mirrors
// the daily archive with by-station files under csv.gz/by_station/.
type S3Transport struct {
	client *s3.Client
	bucket string
}

// NewS3Transport builds an S3 client. Without an access key the requests
// are unsigned, which is all the public bucket needs.
func NewS3Transport(bucket, region, accessKeyID, secretAccessKey string) *S3Transport {
	if bucket == "" {
		bucket = DefaultS3Bucket
	}
	if region == "" {
		region = DefaultS3Region
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if accessKeyID != "" {
		creds = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	client := s3.New(s3.Options{
		Credentials: creds,
		Region:      region,
	})
	return &S3Transport{client: client, bucket: bucket}
}

func (t *S3Transport) Name() string { return "s3" }

// objectKey maps an archive identifier onto the bucket layout.
func objectKey(remoteID string) string {
	if strings.HasPrefix(remoteID, byStationDir) {
		return "csv.gz/" + remoteID
	}
	return remoteID
}

func (t *S3Transport) Retrieve(ctx context.Context, remoteID string) (io.ReadCloser, error) {
	key := objectKey(remoteID)
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", t.bucket, key, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &body{ReadCloser: out.Body, size: size}, nil
}
