package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// listDirectory lists the contents of a library directory.
func (s *Server) listDirectory(c *gin.Context) {
	path, err := s.resolvePath(c.Query("current_path"))
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		c.JSON(404, gin.H{"error": "directory not found"})
		return
	}
	if !info.IsDir() {
		c.JSON(400, gin.H{"error": "path is not a directory"})
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		slog.Error("Failed to read directory", "path", path, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("server error: %v", err)})
		return
	}

	items := make([]FileSystemItem, 0, len(entries))
	for _, entry := range entries {
		item := FileSystemItem{
			Name:        entry.Name(),
			IsDirectory: entry.IsDir(),
			Path:        s.relativeToBase(filepath.Join(path, entry.Name())),
		}
		if !entry.IsDir() {
			if fi, err := entry.Info(); err == nil {
				size := fi.Size()
				mtime := fi.ModTime().Unix()
				item.Size = &size
				item.LastModified = &mtime
			}
		}
		items = append(items, item)
	}

	// Directories first, then case-insensitive by name.
	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	c.JSON(200, items)
}

// createFolder creates a new directory inside the library.
func (s *Server) createFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	path, err := s.resolvePath(req.NewFolderPath)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	if _, err := os.Stat(path); err == nil {
		c.JSON(409, gin.H{"error": "folder already exists at this path"})
		return
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		slog.Error("Failed to create folder", "path", path, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to create folder: %v", err)})
		return
	}

	slog.Info("Created folder", "path", path)
	c.JSON(200, gin.H{"status": "success", "message": "Folder created successfully."})
}

// moveItem moves or renames a file or directory inside the library.
func (s *Server) moveItem(c *gin.Context) {
	var req MoveRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	src, err := s.resolvePath(req.SourcePath)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid source path"})
		return
	}
	dest, err := s.resolvePath(req.DestinationPath)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid destination path"})
		return
	}

	if _, err := os.Stat(src); err != nil {
		c.JSON(404, gin.H{"error": "source item not found"})
		return
	}
	if _, err := os.Stat(dest); err == nil {
		c.JSON(409, gin.H{"error": "destination already exists"})
		return
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to prepare destination: %v", err)})
		return
	}
	if err := os.Rename(src, dest); err != nil {
		slog.Error("Failed to move item", "src", src, "dest", dest, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to move item: %v", err)})
		return
	}

	slog.Info("Moved item", "src", src, "dest", dest)
	c.JSON(200, gin.H{"status": "success", "message": "Item moved successfully."})
}

// deleteItem removes a file or a directory (recursively) from the library.
func (s *Server) deleteItem(c *gin.Context) {
	var req DeleteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	path, err := s.resolvePath(req.ItemPath)
	if err != nil {
		c.JSON(403, gin.H{"error": "access denied: invalid path"})
		return
	}

	// Refuse to delete the library root itself.
	if path == s.cfg.Library.BaseDir {
		c.JSON(400, gin.H{"error": "cannot delete the library root"})
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		c.JSON(404, gin.H{"error": "item not found"})
		return
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		slog.Error("Failed to delete item", "path", path, "error", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to delete item: %v", err)})
		return
	}

	slog.Info("Deleted item", "path", path, "dir", info.IsDir())
	c.JSON(200, gin.H{"status": "success", "message": "Item deleted successfully."})
}
