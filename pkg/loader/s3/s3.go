package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OFFIS-RIT/ontokit/pkg/loader"
)

// S3FileLoader is a FileLoader implementation that loads ontology and
// annotation files from an S3 bucket, e.g. an HPO release mirrored next to
// the computed artifacts.
type S3FileLoader struct {
	loader.Cache

	bucket string
	client *s3.Client
}

// NewS3FileLoaderWithClient creates a new S3FileLoader using an existing
// s3.Client.
//
// Example:
//
//	client, err := storage.NewS3Client(ctx, cfg.S3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	l := s3.NewS3FileLoaderWithClient(cfg.S3.Bucket, client)
//	file := loader.NewOntologyFile(loader.NewFileParams{ID: "hp", FilePath: "hp/hp.obo", Loader: l})
func NewS3FileLoaderWithClient(bucket string, client *s3.Client) *S3FileLoader {
	return &S3FileLoader{
		bucket: bucket,
		client: client,
	}
}

// GetFileBytes retrieves the object at file.FilePath. It implements the
// FileLoader interface.
func (l *S3FileLoader) GetFileBytes(ctx context.Context, file loader.File) ([]byte, error) {
	return l.Get(ctx, file, func(ctx context.Context) ([]byte, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(file.FilePath),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %s from bucket %s: %w", file.FilePath, l.bucket, err)
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}
