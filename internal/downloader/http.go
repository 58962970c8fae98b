// Package downloader streams video files from HTTP sources to disk,
// reporting download progress, speed and ETA as bytes arrive.
package downloader

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// Long timeout: some of these files are multi-GB over slow links.
	defaultDownloadTimeout = 60 * time.Minute

	progressChunkSize = 8192

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

var ErrEmptyDownload = fmt.Errorf("downloaded file is empty")

// Client downloads files over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a downloader with a long-running HTTP client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultDownloadTimeout},
	}
}

// Fetch downloads srcURL into destDir, deriving and sanitizing the filename
// from the URL. onProgress receives percentage, human-readable speed and ETA
// whenever another chunk lands; it is skipped when the server does not
// report a content length.
func (c *Client) Fetch(srcURL, destDir string, onProgress func(percentage float64, speed, eta string)) (string, error) {
	filename := FilenameFromURL(srcURL)
	if filename == "" {
		return "", fmt.Errorf("could not derive a filename from %s", srcURL)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	destPath := filepath.Join(destDir, filename)

	req, err := http.NewRequest(http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	slog.Info("Starting download", "url", srcURL, "dest", destPath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	written, err := copyWithProgress(out, resp.Body, resp.ContentLength, onProgress)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if written == 0 {
		return "", ErrEmptyDownload
	}

	slog.Info("Download finished", "path", destPath, "size", written)
	return destPath, nil
}

// copyWithProgress copies src to dst in fixed chunks, invoking onProgress
// with a percentage, MB/s speed and remaining-time estimate. Progress is
// only reported when totalSize is known.
func copyWithProgress(dst io.Writer, src io.Reader, totalSize int64, onProgress func(float64, string, string)) (int64, error) {
	var written int64
	start := time.Now()
	buf := make([]byte, progressChunkSize)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)

			if onProgress != nil && totalSize > 0 {
				percentage := float64(written) / float64(totalSize) * 100
				elapsed := time.Since(start).Seconds()

				var speed string
				var eta string
				if elapsed > 0 {
					bps := float64(written) / elapsed
					speed = fmt.Sprintf("%.2f MB/s", bps/(1024*1024))
					if bps > 0 {
						remaining := time.Duration(float64(totalSize-written)/bps) * time.Second
						eta = fmt.Sprintf("%dm %ds", int(remaining.Minutes()), int(remaining.Seconds())%60)
					}
				}
				onProgress(percentage, speed, eta)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// FilenameFromURL derives a display/storage filename from a source URL:
// query string dropped, percent-escapes decoded, then sanitized.
func FilenameFromURL(srcURL string) string {
	trimmed := srcURL
	if idx := strings.Index(trimmed, "?"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}
	return SanitizeFilename(trimmed)
}

// SanitizeFilename URL-decodes a filename and strips the junk the upstream
// site appends: a known random suffix, "(Raw)"/"(Partial)" markers, and any
// characters invalid in filenames.
func SanitizeFilename(name string) string {
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	name = junkSuffixRe.ReplaceAllString(name, "")
	name = rawMarkerRe.ReplaceAllString(name, "")
	name = invalidCharRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
