package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSArchiver uploads artifacts to a Google Cloud Storage bucket.
type GCSArchiver struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
}

// NewGCSArchiver creates a GCS-backed archiver. With an empty
// credentialsFile the client uses application default credentials.
func NewGCSArchiver(ctx context.Context, bucket, objectPrefix, credentialsFile string) (*GCSArchiver, error) {
	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSArchiver{
		client:       client,
		bucket:       bucket,
		objectPrefix: strings.Trim(objectPrefix, "/"),
	}, nil
}

// Archive uploads srcPath to the bucket as an object named after name.
func (a *GCSArchiver) Archive(ctx context.Context, srcPath, name string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	objectName := name
	if a.objectPrefix != "" {
		objectName = a.objectPrefix + "/" + name
	}

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Close releases the underlying client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}
