package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/lukudoko/videothing/internal/downloader"
	"github.com/lukudoko/videothing/internal/scraper"
)

// scrape returns the downloadable video links found on a page.
func (s *Server) scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	links, err := scraper.Scrape(req.URL)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"videos": links})
}

// download validates the target directory and admits a download job.
func (s *Server) download(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	targetDir, err := s.resolvePath(req.Path)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		slog.Error("Failed to create target directory", "dir", targetDir, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("could not create target directory: %v", err)})
		return
	}

	// Reject early when the expected file is already on disk; re-downloading
	// over an existing episode is never what the user wants.
	if req.Title != "" {
		expected := filepath.Join(targetDir, downloader.SanitizeFilename(filepath.Base(req.Title)))
		if _, err := os.Stat(expected); err == nil {
			c.JSON(409, gin.H{"error": fmt.Sprintf("file %q already exists at the chosen location", filepath.Base(expected))})
			return
		}
	}

	if !s.queue.Submit(req.URL, targetDir) {
		c.JSON(409, gin.H{"error": "download already in progress for this URL"})
		return
	}

	c.JSON(200, gin.H{
		"status":  "queued",
		"message": fmt.Sprintf("Download for %s queued. Conversion will start automatically after download.", req.URL),
	})
}

// getProgress returns every job record.
func (s *Server) getProgress(c *gin.Context) {
	c.JSON(200, s.queue.AllProgress())
}

// clearProgress removes finished records.
func (s *Server) clearProgress(c *gin.Context) {
	cleared := s.queue.ClearFinished()
	c.JSON(200, gin.H{"message": fmt.Sprintf("Cleared %d finished entries from progress list.", cleared)})
}

// updateQueueConfig toggles the transcription stage.
func (s *Server) updateQueueConfig(c *gin.Context) {
	var req QueueConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.queue.SetTranscriptionEnabled(req.EnableTranscription)
	state := "disabled"
	if req.EnableTranscription {
		state = "enabled"
	}
	slog.Info("Transcription toggled", "enabled", req.EnableTranscription)
	c.JSON(200, gin.H{"message": fmt.Sprintf("Transcription %s", state)})
}

// queueStats summarizes job counts by status.
func (s *Server) queueStats(c *gin.Context) {
	all := s.queue.AllProgress()
	byStatus := make(map[string]int)
	for _, rec := range all {
		byStatus[string(rec.Status)]++
	}

	c.JSON(200, gin.H{
		"total_jobs": len(all),
		"by_status":  byStatus,
	})
}

// transcribeFile admits a transcription-only job for an on-disk file.
func (s *Server) transcribeFile(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	path, err := s.resolvePath(req.Path)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(404, gin.H{"error": "video file not found or is not a file"})
		return
	}

	displayName := req.Title
	if displayName == "" {
		displayName = filepath.Base(path)
	}

	if !s.queue.SubmitTranscription(path, displayName) {
		c.JSON(409, gin.H{"error": "transcription for this file is already in progress"})
		return
	}

	c.JSON(200, gin.H{
		"status":  "queued",
		"message": fmt.Sprintf("Transcription for %s queued.", displayName),
	})
}

// archive copies a finished artifact into the configured archive backend.
func (s *Server) archive(c *gin.Context) {
	if s.archiver == nil {
		c.JSON(501, gin.H{"error": "no archive storage configured"})
		return
	}

	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	path, err := s.resolvePath(req.Path)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(404, gin.H{"error": "file not found or is not a file"})
		return
	}

	location, err := s.archiver.Archive(c.Request.Context(), path, filepath.Base(path))
	if err != nil {
		slog.Error("Archive failed", "path", path, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("archive failed: %v", err)})
		return
	}

	c.JSON(200, gin.H{"status": "success", "location": location})
}
