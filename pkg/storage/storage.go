// Package storage reads and writes images and result documents in S3. The
// S3 API surface is an interface so the pipeline can be tested against a
// fake backend.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/aidan3e4/vibecast/pkg/imgio"
)

// ErrBadURI is returned for strings that are not s3://bucket/key URIs.
var ErrBadURI = errors.New("invalid S3 URI")

// S3API is the subset of the S3 client the package uses.
type S3API interface {
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
}

// Client wraps an S3 API with the vibecast object conventions.
type Client struct {
	api S3API
}

// New builds a client against the real S3 service in the given region.
func New(region string) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return &Client{api: s3.New(sess)}, nil
}

// NewWithAPI builds a client over an existing (or fake) S3 API.
func NewWithAPI(api S3API) *Client {
	return &Client{api: api}
}

// ParseURI splits an "s3://bucket/path/to/key" URI into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", errors.Wrap(ErrBadURI, uri)
	}
	rest := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Wrap(ErrBadURI, uri)
	}
	return parts[0], parts[1], nil
}

// URI assembles an s3:// URI from a bucket and key.
func URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// OutputPrefix derives the output key prefix for a processed input: the
// input key with its leading directory replaced by mainDir and the file
// extension dropped.
//
// Example: ("images/camera1/img001.jpg", "unwarped") -> "unwarped/camera1/img001".
func OutputPrefix(inputKey, mainDir string) string {
	filename := inputKey
	if i := strings.Index(inputKey, "/"); i >= 0 {
		filename = inputKey[i+1:]
	}
	if dot := strings.LastIndex(filename, "."); dot > 0 {
		filename = filename[:dot]
	}
	return mainDir + "/" + filename
}

// DownloadImage fetches and decodes an image object. Decode failures carry
// the imgio decode sentinel so callers can tell bad files from bad
// parameters.
func (c *Client) DownloadImage(ctx aws.Context, bucket, key string) (image.Image, error) {
	out, err := c.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", URI(bucket, key))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", URI(bucket, key))
	}

	img, err := imgio.DecodeBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", URI(bucket, key))
	}
	return img, nil
}

// UploadImage encodes an image as JPEG at the default quality and uploads
// it. Returns the S3 URI of the stored object.
func (c *Client) UploadImage(ctx aws.Context, img image.Image, bucket, key string) (string, error) {
	data, err := imgio.EncodeJPEG(img, imgio.DefaultJPEGQuality)
	if err != nil {
		return "", err
	}

	_, err = c.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", URI(bucket, key))
	}
	return URI(bucket, key), nil
}

// UploadJSON marshals a document with indentation and uploads it. Returns
// the S3 URI of the stored object.
func (c *Client) UploadJSON(ctx aws.Context, doc interface{}, bucket, key string) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshaling results")
	}

	_, err = c.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", URI(bucket, key))
	}
	return URI(bucket, key), nil
}
