package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BASE_DOWNLOAD_DIR", "")

	cfg, err := Load(writeConfig(t, "log_level: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, "8005", cfg.Server.Port)
	assert.Equal(t, "/mnt/drive/Media", cfg.Library.BaseDir)
	assert.Equal(t, 4, cfg.Pipeline.ConvertWorkers)
	assert.Equal(t, 1, cfg.Pipeline.TranscribeWorkers)
	assert.Equal(t, "whisper-cli", cfg.Transcription.Binary)
	assert.True(t, cfg.Convert.DeleteOriginalEnabled())
	assert.Empty(t, cfg.Archive.Type)
}

func TestLoadFullConfig(t *testing.T) {
	t.Setenv("BASE_DOWNLOAD_DIR", "")

	cfg, err := Load(writeConfig(t, `
log_level: -4
server:
  port: "9000"
library:
  base_dir: /srv/media
pipeline:
  convert_workers: 2
  transcribe_workers: 3
convert:
  video_codec: libx264
  hwaccel: none
  preset: fast
  delete_original: false
transcription:
  enabled: true
  binary: whisper
  model_path: /models/ggml-base.bin
  model_url: https://example.com/ggml-base.bin
archive:
  type: gcs
  bucket: my-archive
  object_prefix: videothing/
`))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "/srv/media", cfg.Library.BaseDir)
	assert.Equal(t, 2, cfg.Pipeline.ConvertWorkers)
	assert.Equal(t, 3, cfg.Pipeline.TranscribeWorkers)
	assert.Equal(t, "libx264", cfg.Convert.VideoCodec)
	assert.False(t, cfg.Convert.DeleteOriginalEnabled())
	assert.True(t, cfg.Transcription.Enabled)
	assert.Equal(t, "whisper", cfg.Transcription.Binary)
	assert.Equal(t, "gcs", cfg.Archive.Type)
	assert.Equal(t, "my-archive", cfg.Archive.Bucket)
}

func TestLoadBaseDirEnvOverride(t *testing.T) {
	t.Setenv("BASE_DOWNLOAD_DIR", "/srv/override")

	cfg, err := Load(writeConfig(t, "library:\n  base_dir: /srv/media\n"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/override", cfg.Library.BaseDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map\n"))
	assert.Error(t, err)
}
