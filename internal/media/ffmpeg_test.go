package media

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMissingFile(t *testing.T) {
	result := NewConverter(Options{}).Convert(t.TempDir(), "ghost.avi", nil)

	assert.Equal(t, StatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, ErrFileNotFound)
	assert.Contains(t, result.Message, "ghost.avi")
}

func TestConvertAlreadyMP4(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video"), 0644))

	result := NewConverter(Options{}).Convert(dir, "episode.mp4", nil)

	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, path, result.OutputFile)
}

func TestConvertUppercaseMP4Extension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.MP4")
	require.NoError(t, os.WriteFile(path, []byte("fake video"), 0644))

	result := NewConverter(Options{}).Convert(dir, "episode.MP4", nil)

	// Same container but a different target name: report success pointing at
	// the input, no encode runs.
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, path, result.OutputFile)
	assert.Contains(t, result.Message, "already MP4")
}

func TestConvertOutputAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "episode.avi"), []byte("in"), 0644))
	existing := filepath.Join(dir, "episode.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("out"), 0644))

	result := NewConverter(Options{}).Convert(dir, "episode.avi", nil)

	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, existing, result.OutputFile)
	assert.Contains(t, result.Message, "already exists")
}

func TestParseProgressSeconds(t *testing.T) {
	tests := []struct {
		name string
		data string
		want float64
	}{
		{
			name: "out_time_ms preferred",
			data: "frame=100\nout_time_ms=90500000\nprogress=continue\n",
			want: 90.5,
		},
		{
			name: "latest entry wins",
			data: "out_time_ms=1000000\nprogress=continue\nout_time_ms=2000000\nprogress=continue\n",
			want: 2,
		},
		{
			name: "fallback time format",
			data: "size=1024\ntime=00:01:30.50 bitrate=1000k\n",
			want: 90.5,
		},
		{
			name: "no position",
			data: "frame=1\nprogress=continue\n",
			want: 0,
		},
		{
			name: "empty",
			data: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseProgressSeconds(tt.data), 0.001)
		})
	}
}

func TestFFmpegErrorTruncatesCommand(t *testing.T) {
	args := make([]string, 60)
	for i := range args {
		args[i] = "-averyverylongflagvalue"
	}
	cmd := exec.Command("ffmpeg", args...)

	wrapped := errors.New("exit status 1")
	err := newFFmpegError(cmd, []byte("some stderr"), wrapped)

	assert.ErrorIs(t, err, wrapped)
	assert.Contains(t, err.Error(), "...")
	assert.Contains(t, err.Error(), "some stderr")
}

func TestNewConverterDefaults(t *testing.T) {
	c := NewConverter(Options{})
	assert.Equal(t, "h264_nvenc", c.opts.VideoCodec)
	assert.Equal(t, "cuda", c.opts.HWAccel)
	assert.Equal(t, "medium", c.opts.Preset)

	c = NewConverter(Options{VideoCodec: "libx264", HWAccel: "none", Preset: "fast"})
	assert.Equal(t, "libx264", c.opts.VideoCodec)
	assert.Equal(t, "none", c.opts.HWAccel)
	assert.Equal(t, "fast", c.opts.Preset)
}
