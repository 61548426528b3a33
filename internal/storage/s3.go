package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/artifact"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const artifactContentType = "application/vnd.ontokit.artifact"

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithBaseEndpoint(cfg.Endpoint),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// ArtifactStore keeps precomputed matrices and score distributions in a
// bucket, encoded with the artifact format.
type ArtifactStore struct {
	client         *s3.Client
	bucket         string
	publicEndpoint string
	backoff        util.Backoff
}

func NewArtifactStore(client *s3.Client, cfg config.S3Config) *ArtifactStore {
	return &ArtifactStore{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: cfg.PublicEndpoint,
		backoff:        util.DefaultBackoff,
	}
}

// DistributionKey is the object key of the distributions produced by a
// sampling job.
func DistributionKey(ontology, jobID string) string {
	return path.Join("distributions", ontology, jobID+".ontk")
}

// MatrixKey is the object key of a precomputed similarity matrix.
func MatrixKey(ontology, version string) string {
	if version == "" {
		version = "latest"
	}
	return path.Join("matrices", ontology, sanitizeKey(version)+".ontk")
}

func sanitizeKey(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}

// Put encodes payload and uploads it under key.
func (s *ArtifactStore) Put(ctx context.Context, key string, payload any) error {
	data, err := artifact.Encode(payload)
	if err != nil {
		return err
	}
	return util.RetryErrWithContext(ctx, s.backoff, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(artifactContentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload artifact to S3: %w", err)
		}
		return nil
	})
}

// Get downloads key and decodes it into payload. It returns the version the
// artifact was written with.
func (s *ArtifactStore) Get(ctx context.Context, key string, payload any) (string, error) {
	data, err := util.RetryWithContext(ctx, s.backoff, func(ctx context.Context) ([]byte, error) {
		result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get artifact from S3: %w", err)
		}
		defer result.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, result.Body); err != nil {
			return nil, fmt.Errorf("failed to read artifact contents: %w", err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return "", err
	}
	return artifact.Decode(data, payload)
}

func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact from S3: %w", err)
	}
	return nil
}

// List returns all keys below prefix.
func (s *ArtifactStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}

// DeletePrefix removes every object below prefix, e.g. all distributions
// of an ontology after a new release.
func (s *ArtifactStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects below %s: %w", prefix, err)
		}
	}
	return nil
}

// DownloadLink presigns a GET for key against the public endpoint.
func (s *ArtifactStore) DownloadLink(ctx context.Context, key string) (string, error) {
	publicURL, err := url.Parse(s.publicEndpoint)
	if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
		return "", fmt.Errorf("invalid AWS_PUBLIC_ENDPOINT: %s", s.publicEndpoint)
	}
	prefix := strings.TrimSuffix(publicURL.Path, "/")

	// presign against the public host so the signature matches the Host header
	publicBaseEndpoint := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)
	presignClient := s3.NewFromConfig(
		aws.Config{
			Region:      s.client.Options().Region,
			Credentials: s.client.Options().Credentials,
			HTTPClient:  s.client.Options().HTTPClient,
		},
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(publicBaseEndpoint)
			o.UsePathStyle = true
		},
	)

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix != "" {
		signedURL, parseErr := url.Parse(out.URL)
		if parseErr != nil {
			return "", fmt.Errorf("failed to parse presigned url: %w", parseErr)
		}
		signedURL.Path = prefix + signedURL.Path
		return signedURL.String(), nil
	}

	return out.URL, nil
}
