package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel int `yaml:"log_level"`

	Server        ServerConfig        `yaml:"server"`
	Library       LibraryConfig       `yaml:"library"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Convert       ConvertConfig       `yaml:"convert"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LibraryConfig struct {
	// BaseDir is the root of the media library; every caller-supplied
	// path is resolved inside it. Overridable with BASE_DOWNLOAD_DIR.
	BaseDir string `yaml:"base_dir"`
}

type PipelineConfig struct {
	ConvertWorkers    int `yaml:"convert_workers"`
	TranscribeWorkers int `yaml:"transcribe_workers"`
}

type ConvertConfig struct {
	VideoCodec     string `yaml:"video_codec"`
	HWAccel        string `yaml:"hwaccel"`
	Preset         string `yaml:"preset"`
	DeleteOriginal *bool  `yaml:"delete_original"`
}

type TranscriptionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Binary    string `yaml:"binary"`
	ModelPath string `yaml:"model_path"`
	ModelURL  string `yaml:"model_url"`
}

type ArchiveConfig struct {
	// Type of archive storage: "local" or "gcs". Empty disables archiving.
	Type string `yaml:"type"`

	// Local archive options
	Dir string `yaml:"dir"`

	// GCS archive options
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// DeleteOriginalEnabled defaults to true when unset, matching the old
// behavior of replacing the source file with the converted one.
func (c ConvertConfig) DeleteOriginalEnabled() bool {
	return c.DeleteOriginal == nil || *c.DeleteOriginal
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	// Set defaults if not provided
	if config.Server.Port == "" {
		config.Server.Port = "8005"
	}

	if env := os.Getenv("BASE_DOWNLOAD_DIR"); env != "" {
		config.Library.BaseDir = env
	}
	if config.Library.BaseDir == "" {
		config.Library.BaseDir = "/mnt/drive/Media"
	}
	abs, err := filepath.Abs(config.Library.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid base directory %s: %w", config.Library.BaseDir, err)
	}
	config.Library.BaseDir = abs

	if config.Pipeline.ConvertWorkers <= 0 {
		config.Pipeline.ConvertWorkers = 4
	}
	if config.Pipeline.TranscribeWorkers <= 0 {
		config.Pipeline.TranscribeWorkers = 1
	}

	if config.Transcription.Binary == "" {
		config.Transcription.Binary = "whisper-cli"
	}

	return config, nil
}
