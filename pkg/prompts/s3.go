package prompts

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// s3API is the S3 surface the store uses; tests substitute a fake.
type s3API interface {
	ListObjectsV2PagesWithContext(aws.Context, *s3.ListObjectsV2Input, func(*s3.ListObjectsV2Output, bool) bool, ...request.Option) error
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Store keeps prompt revisions as objects under a key prefix in a bucket.
type S3Store struct {
	api    s3API
	bucket string
	prefix string
}

// NewS3Store builds a store against the real S3 service.
func NewS3Store(region, bucket, prefix string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return newS3Store(s3.New(sess), bucket, prefix), nil
}

func newS3Store(api s3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(name string, version int) string {
	return s.prefix + Filename(name, version)
}

// List implements Store.
func (s *S3Store) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			filename := key
			if i := strings.LastIndex(key, "/"); i >= 0 {
				filename = key[i+1:]
			}
			name, version, ok := parseFilename(filename)
			if !ok {
				continue
			}
			infos = append(infos, Info{Name: name, Version: version, Source: "s3"})
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing prompts in s3://%s/%s", s.bucket, s.prefix)
	}
	return markLatest(infos), nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, name string, version int) (string, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name, version)),
	})
	if err != nil {
		return "", errors.Wrapf(ErrNotFound, "%s version %d: %v", name, version, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.Wrapf(err, "reading prompt %s version %d", name, version)
	}
	return string(data), nil
}

// Latest implements Store.
func (s *S3Store) Latest(ctx context.Context, name string) (string, int, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return "", 0, err
	}
	for _, in := range infos {
		if in.Name == name && in.Latest {
			text, err := s.Get(ctx, name, in.Version)
			return text, in.Version, err
		}
	}
	return "", 0, errors.Wrap(ErrNotFound, name)
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, name string, version int, text string) error {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name, version)),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return errors.Wrapf(err, "writing prompt %s version %d", name, version)
	}
	return nil
}
