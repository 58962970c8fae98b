// Package storage archives finished artifacts to a configured backend,
// either a local directory or a Google Cloud Storage bucket.
package storage

import "context"

// Archiver copies a finished artifact out of the media library into
// longer-term storage.
type Archiver interface {
	// Archive stores the file at srcPath under name and returns a
	// backend-specific location string for the stored copy.
	Archive(ctx context.Context, srcPath, name string) (string, error)
}
