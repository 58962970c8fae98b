package server

// ScrapeRequest asks for the video links on a page.
type ScrapeRequest struct {
	URL string `json:"url" binding:"required"`
}

// DownloadRequest queues a download of URL into Path, a directory relative
// to the library base. Title is the display name the frontend shows.
type DownloadRequest struct {
	URL   string `json:"url" binding:"required"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// TranscribeRequest queues transcription of an existing file at Path,
// relative to the library base.
type TranscribeRequest struct {
	Path  string `json:"path" binding:"required"`
	Title string `json:"title"`
}

// QueueConfigRequest toggles the transcription stage for future jobs.
type QueueConfigRequest struct {
	EnableTranscription bool `json:"enable_transcription"`
}

// ArchiveRequest copies a finished artifact into archive storage.
type ArchiveRequest struct {
	Path string `json:"path" binding:"required"`
}

// MoveRenameRequest moves or renames an item inside the library.
type MoveRenameRequest struct {
	SourcePath      string `json:"source_path" binding:"required"`
	DestinationPath string `json:"destination_path" binding:"required"`
}

// CreateFolderRequest creates a new directory inside the library.
type CreateFolderRequest struct {
	NewFolderPath string `json:"new_folder_path" binding:"required"`
}

// DeleteItemRequest removes a file or directory inside the library.
type DeleteItemRequest struct {
	ItemPath string `json:"item_path" binding:"required"`
}

// FileSystemItem is one directory entry returned by the list endpoint.
type FileSystemItem struct {
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Size         *int64 `json:"size"`
	LastModified *int64 `json:"last_modified"`
	Path         string `json:"path"`
}
