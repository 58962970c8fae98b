// Package transcribe runs whisper.cpp over downloaded videos to produce
// subtitle files. The whisper model is a heavyweight shared resource: it is
// resolved (and downloaded if missing) at most once per process, behind its
// own lock, and can be released again with Unload.
package transcribe

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lukudoko/videothing/internal/media"
)

// Result is the structured outcome of one transcription attempt.
type Result struct {
	ArtifactPath string
	Message      string
	Err          error
}

var ErrModelNotFound = fmt.Errorf("whisper model not found")

const modelDownloadTimeout = 30 * time.Minute

// model is the loaded transcription resource: a validated whisper model
// file plus the binary that consumes it.
type model struct {
	path   string
	binary string
}

const (
	modelUnloaded = iota
	modelLoading
	modelLoaded
)

// Options configures the transcription service.
type Options struct {
	// Binary is the whisper.cpp executable. Defaults to "whisper-cli".
	Binary string
	// ModelPath is a ggml model file or a directory containing one.
	ModelPath string
	// ModelURL, when set, is fetched into ModelPath if the file is missing.
	ModelURL string
}

// Service transcribes media files. Safe for concurrent use; concurrent
// first users race to load the model exactly once.
type Service struct {
	opts Options

	mu    sync.Mutex
	cond  *sync.Cond
	state int
	model *model

	// load is swapped out in tests.
	load func() (*model, error)
}

// NewService creates a transcription service. The model is not loaded until
// the first Transcribe call.
func NewService(opts Options) *Service {
	if opts.Binary == "" {
		opts.Binary = "whisper-cli"
	}
	s := &Service{opts: opts}
	s.cond = sync.NewCond(&s.mu)
	s.load = s.loadModel
	return s
}

// ensureModel returns the loaded model, loading it first if necessary.
// Exactly one caller performs the load; the rest wait on the condition
// variable. A failed load leaves the service unloaded so the next job
// retries.
func (s *Service) ensureModel() (*model, error) {
	s.mu.Lock()
	for s.state == modelLoading {
		s.cond.Wait()
	}
	if s.state == modelLoaded {
		m := s.model
		s.mu.Unlock()
		return m, nil
	}
	s.state = modelLoading
	s.mu.Unlock()

	m, err := s.load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = modelUnloaded
		s.cond.Broadcast()
		return nil, err
	}
	s.state = modelLoaded
	s.model = m
	s.cond.Broadcast()
	return m, nil
}

// Unload releases the model resource. No-op when nothing is loaded.
func (s *Service) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.state == modelLoading {
		s.cond.Wait()
	}
	if s.state == modelLoaded {
		slog.Info("Unloading whisper model", "path", s.model.path)
		s.model = nil
		s.state = modelUnloaded
	}
}

// Loaded reports whether the model is currently resident.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == modelLoaded
}

// loadModel resolves the configured model file, downloading it when a URL
// is configured and the file is missing, and verifies the whisper binary.
func (s *Service) loadModel() (*model, error) {
	binary, err := exec.LookPath(s.opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("whisper binary %q not found in PATH: %w", s.opts.Binary, err)
	}

	path, err := resolveModelPath(s.opts.ModelPath)
	if err != nil {
		if s.opts.ModelURL == "" {
			return nil, err
		}
		slog.Info("Whisper model missing, downloading", "url", s.opts.ModelURL, "path", s.opts.ModelPath)
		if err := downloadModel(s.opts.ModelPath, s.opts.ModelURL); err != nil {
			return nil, fmt.Errorf("model download failed: %w", err)
		}
		path = s.opts.ModelPath
	}

	slog.Info("Whisper model ready", "path", path, "binary", binary)
	return &model{path: path, binary: binary}, nil
}

// resolveModelPath accepts either a model file or a directory holding one
// and returns the model file to use.
func resolveModelPath(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", fmt.Errorf("%w: no model path configured", ErrModelNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory %s: %w", path, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			return filepath.Join(path, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no .bin or .gguf files in %s", ErrModelNotFound, path)
}

func downloadModel(path, url string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	client := &http.Client{Timeout: modelDownloadTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model download failed with status %d", resp.StatusCode)
	}

	tmp := path + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Transcribe produces an .srt file next to the input video, reporting
// progress as whisper works through the audio. The input is first downmixed
// to 16 kHz mono WAV, which is what whisper.cpp expects.
func (s *Service) Transcribe(path string, onProgress func(percentage float64)) Result {
	m, err := s.ensureModel()
	if err != nil {
		return Result{
			Message: fmt.Sprintf("transcription model unavailable: %v", err),
			Err:     fmt.Errorf("model load failed: %w", err),
		}
	}

	if _, err := os.Stat(path); err != nil {
		return Result{Message: fmt.Sprintf("file not found for transcription: %s", path), Err: err}
	}

	totalSeconds, err := media.Duration(path)
	if err != nil {
		slog.Warn("Could not determine duration, transcription progress will be coarse", "path", path, "error", err)
		totalSeconds = 0
	}

	workDir, err := os.MkdirTemp("", "videothing-transcribe-*")
	if err != nil {
		return Result{Message: "failed to create transcription workspace", Err: err}
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "audio-16k-mono.wav")
	extract := exec.Command("ffmpeg",
		"-hide_banner", "-nostdin", "-y",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		wavPath,
	)
	if output, err := extract.CombinedOutput(); err != nil {
		return Result{
			Message: fmt.Sprintf("audio extraction failed for %s", path),
			Err:     fmt.Errorf("ffmpeg audio extraction: %w: %s", err, truncate(string(output), 500)),
		}
	}

	srtBase := strings.TrimSuffix(path, filepath.Ext(path))
	cmd := exec.Command(m.binary,
		"-m", m.path,
		"-f", wavPath,
		"-of", srtBase,
		"-osrt",
	)

	if err := s.runWithProgress(cmd, totalSeconds, onProgress); err != nil {
		return Result{
			Message: fmt.Sprintf("transcription failed for %s", path),
			Err:     err,
		}
	}

	srtPath := srtBase + ".srt"
	if _, err := os.Stat(srtPath); err != nil {
		return Result{
			Message: "whisper finished but produced no subtitle file",
			Err:     fmt.Errorf("missing transcription artifact %s: %w", srtPath, err),
		}
	}

	if onProgress != nil {
		onProgress(100)
	}
	slog.Info("Transcription complete", "input", path, "srt", srtPath)
	return Result{ArtifactPath: srtPath, Message: "transcription completed"}
}

// runWithProgress executes whisper and converts the segment end timestamps
// it prints into percentage ticks against the known media duration.
func (s *Service) runWithProgress(cmd *exec.Cmd, totalSeconds float64, onProgress func(float64)) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to whisper output: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start whisper: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if totalSeconds <= 0 || onProgress == nil {
			continue
		}
		if end, ok := parseSegmentEnd(scanner.Text()); ok {
			percentage := end / totalSeconds * 100
			if percentage > 100 {
				percentage = 100
			}
			onProgress(percentage)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("whisper failed: %w: %s", err, truncate(stderr.String(), 500))
	}
	return nil
}

var segmentRe = regexp.MustCompile(`-->\s*(\d{2}):(\d{2}):(\d{2})[.,](\d{3})\]`)

// parseSegmentEnd extracts the end timestamp, in seconds, from a whisper
// segment line such as "[00:01:02.500 --> 00:01:05.000]  text".
func parseSegmentEnd(line string) (float64, bool) {
	m := segmentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(m[3], 64)
	ms, _ := strconv.ParseFloat(m[4], 64)
	return h*3600 + min*60 + sec + ms/1000, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
