// Package media drives ffmpeg to convert downloaded videos into MP4,
// reporting conversion progress by polling ffmpeg's -progress output.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result statuses reported by Convert.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Result is the structured outcome of one conversion attempt.
type Result struct {
	Status     string
	OutputFile string
	Message    string
	Err        error
}

var (
	ErrFileNotFound = fmt.Errorf("file not found")
	ErrNoDuration   = fmt.Errorf("could not determine duration")
)

// ffmpegError wraps ffmpeg command failures with truncated command context.
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error {
	return e.wrapped
}

func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	return &ffmpegError{cmd: cmdStr, output: string(output), wrapped: err}
}

// Options tunes the encode. Zero values fall back to NVENC hardware
// encoding, matching the boxes this runs on.
type Options struct {
	VideoCodec     string
	HWAccel        string
	Preset         string
	DeleteOriginal bool
}

// Converter converts a single video file into H.264/AAC MP4.
type Converter struct {
	opts         Options
	pollInterval time.Duration
}

// NewConverter creates a converter with the given options.
func NewConverter(opts Options) *Converter {
	if opts.VideoCodec == "" {
		opts.VideoCodec = "h264_nvenc"
	}
	if opts.HWAccel == "" {
		opts.HWAccel = "cuda"
	}
	if opts.Preset == "" {
		opts.Preset = "medium"
	}
	return &Converter{opts: opts, pollInterval: 500 * time.Millisecond}
}

// Convert converts dir/filename to MP4 in the same directory, calling
// onProgress with a 0-100 percentage as ffmpeg advances. Inputs that are
// already MP4 are not re-encoded; an existing output file skips the run.
func (c *Converter) Convert(dir, filename string, onProgress func(percentage float64)) Result {
	inputPath := filepath.Join(dir, filename)
	if _, err := os.Stat(inputPath); err != nil {
		return Result{
			Status:  StatusFailed,
			Message: fmt.Sprintf("file not found for conversion: %s", inputPath),
			Err:     fmt.Errorf("%w: %s", ErrFileNotFound, inputPath),
		}
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(dir, base+".mp4")

	// Already in the target container: report done without re-encoding.
	if strings.EqualFold(filepath.Ext(inputPath), ".mp4") {
		if inputPath == outputPath {
			return Result{Status: StatusSkipped, OutputFile: inputPath, Message: "file is already an MP4"}
		}
		slog.Info("Skipping re-conversion, input is already MP4", "path", inputPath)
		return Result{Status: StatusSuccess, OutputFile: inputPath, Message: "already MP4, no re-conversion needed"}
	}

	if _, err := os.Stat(outputPath); err == nil {
		return Result{Status: StatusSkipped, OutputFile: outputPath, Message: fmt.Sprintf("output file already exists: %s", outputPath)}
	}

	totalSeconds, err := Duration(inputPath)
	if err != nil {
		slog.Warn("Could not determine video duration, progress will be inaccurate", "path", inputPath, "error", err)
		totalSeconds = 0
	}

	progressPath := filepath.Join(os.TempDir(), fmt.Sprintf("ffmpeg_progress_%s", uuid.NewString()))
	defer os.Remove(progressPath)

	cmd := exec.Command("ffmpeg",
		"-hwaccel", c.opts.HWAccel,
		"-i", inputPath,
		"-c:v", c.opts.VideoCodec,
		"-preset", c.opts.Preset,
		"-tune", "hq",
		"-cq:v", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		"-progress", progressPath,
		outputPath,
	)

	slog.Info("Starting conversion", "input", inputPath, "output", outputPath, "duration", totalSeconds)

	output, err := c.runWithProgress(cmd, progressPath, totalSeconds, onProgress)
	if err != nil {
		ffErr := newFFmpegError(cmd, output, err)
		return Result{
			Status:  StatusFailed,
			Message: fmt.Sprintf("conversion failed for %s: %v", inputPath, err),
			Err:     ffErr,
		}
	}

	if onProgress != nil {
		onProgress(100)
	}

	if c.opts.DeleteOriginal {
		if err := os.Remove(inputPath); err != nil {
			slog.Warn("Failed to delete original after conversion", "path", inputPath, "error", err)
		} else {
			slog.Info("Deleted original file", "path", inputPath)
		}
	}

	return Result{Status: StatusSuccess, OutputFile: outputPath, Message: "converted"}
}

// runWithProgress starts cmd and polls the -progress file until the process
// exits, reporting percentage ticks whenever the integer percentage advances.
func (c *Converter) runWithProgress(cmd *exec.Cmd, progressPath string, totalSeconds float64, onProgress func(float64)) ([]byte, error) {
	var combined strings.Builder
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastReported := 0.0
	for {
		select {
		case err := <-done:
			return []byte(combined.String()), err
		case <-ticker.C:
			if totalSeconds <= 0 || onProgress == nil {
				continue
			}
			data, err := os.ReadFile(progressPath)
			if err != nil {
				continue
			}
			current := parseProgressSeconds(string(data))
			if current <= 0 {
				continue
			}
			percentage := current / totalSeconds * 100
			if percentage > 100 {
				percentage = 100
			}
			if int(percentage) > int(lastReported) {
				onProgress(percentage)
				lastReported = percentage
			}
		}
	}
}

var (
	outTimeRe  = regexp.MustCompile(`out_time_ms=(\d+)`)
	fallbackRe = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2}\.\d+)`)
)

// parseProgressSeconds extracts the most recent encode position, in seconds,
// from ffmpeg -progress output. Returns 0 when no position is found.
func parseProgressSeconds(data string) float64 {
	lines := strings.Split(data, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if m := outTimeRe.FindStringSubmatch(lines[i]); m != nil {
			us, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			return float64(us) / 1e6
		}
		if m := fallbackRe.FindStringSubmatch(lines[i]); m != nil {
			h, _ := strconv.ParseFloat(m[1], 64)
			min, _ := strconv.ParseFloat(m[2], 64)
			sec, _ := strconv.ParseFloat(m[3], 64)
			return h*3600 + min*60 + sec
		}
	}
	return 0
}

// Duration returns the media duration in seconds via ffprobe.
func Duration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}
	raw := strings.TrimSpace(string(output))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrNoDuration, path)
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", raw, err)
	}
	return seconds, nil
}
