package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/ontokit/internal/config"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestKeys(t *testing.T) {
	if got := DistributionKey("hp", "abc"); got != "distributions/hp/abc.ontk" {
		t.Fatalf("expected distributions/hp/abc.ontk, got %s", got)
	}
	if got := MatrixKey("hp", "hp/releases/2024-04-26"); got != "matrices/hp/hp_releases_2024-04-26.ontk" {
		t.Fatalf("expected sanitized version, got %s", got)
	}
	if got := MatrixKey("go", ""); got != "matrices/go/latest.ontk" {
		t.Fatalf("expected latest, got %s", got)
	}
}

func newTestStore(publicEndpoint string) *ArtifactStore {
	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	return NewArtifactStore(client, config.S3Config{Bucket: "ontokit", PublicEndpoint: publicEndpoint})
}

func TestDownloadLink(t *testing.T) {
	s := newTestStore("https://cdn.example.org/files/")
	link, err := s.DownloadLink(context.Background(), "distributions/hp/abc.ontk")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.HasPrefix(link, "https://cdn.example.org/files/ontokit/distributions/hp/abc.ontk?") {
		t.Fatalf("expected link below public prefix, got %s", link)
	}
	if !strings.Contains(link, "X-Amz-Signature=") {
		t.Fatalf("expected presigned link, got %s", link)
	}
}

func TestDownloadLinkInvalidEndpoint(t *testing.T) {
	s := newTestStore("not a url")
	if _, err := s.DownloadLink(context.Background(), "k"); err == nil {
		t.Fatal("expected error for invalid endpoint, got nil")
	}
}
