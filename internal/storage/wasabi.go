package storage

/* Wasabi is an S3 compatible Object Storage Service.
Plate images are uploaded from the temp folder into a bucket and served back
through presigned GET links, so clients fetch them straight from the store
without the service proxying the bytes.
*/

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const (
	PRESIGN_EXPIRES = 360 * time.Minute //6hr cache.
)

type WasabiConfig struct {
	Host   string //bare host gets https, a full URL is used as is
	Region string
	Bucket string
	Prefix string //key prefix, e.g. "plates/"
	Key    string //static credentials; empty uses the default chain
	Secret string
	TmpDir string
}

type Wasabi struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	prefix        string
	tmpDir        string
}

// return a struct that wraps the aws S3 client for Wasabi
func NewWasabi(ctx context.Context, conf WasabiConfig) (*Wasabi, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(conf.Region)}
	if conf.Key != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.Key, conf.Secret, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	endpoint := conf.Host
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	//lets the sdk know we aren't calling official aws servers.
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	prefix := strings.TrimPrefix(conf.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Wasabi{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucket:        conf.Bucket,
		prefix:        prefix,
		tmpDir:        conf.TmpDir,
	}, nil
}

func (w *Wasabi) objectKey(name string) string {
	return w.prefix + name
}

// SaveFile uploads the staged file and removes it from the temp folder.
func (w *Wasabi) SaveFile(ctx context.Context, tmpName string) (string, error) {
	if err := checkName(tmpName); err != nil {
		return "", err
	}

	path := filepath.Join(w.tmpDir, tmpName)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(tmpName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.objectKey(tmpName)),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", tmpName, err)
	}

	if err := os.Remove(path); err != nil {
		logrus.WithError(err).WithField("file", tmpName).Warn("could not remove staged file")
	}
	return tmpName, nil
}

func (w *Wasabi) DeleteFile(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := w.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.objectKey(name)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// creates a secure but publicly accessible image link with a 6hr expiration
func (w *Wasabi) PresignUrl(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	getObjInput := &s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.objectKey(name)),
	}

	presignResult, err := w.presignClient.PresignGetObject(ctx, getObjInput, func(po *s3.PresignOptions) {
		po.Expires = PRESIGN_EXPIRES
	})
	if err != nil {
		return "", err
	}
	return presignResult.URL, nil
}
