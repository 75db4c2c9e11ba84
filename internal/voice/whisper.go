package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	whisperBinaryNames = []string{"whisper-cli", "whisper", "main"}
	// preferred first: large-v3-turbo transcribes PT-BR best
	whisperModelNames = []string{
		"ggml-large-v3-turbo.bin",
		"ggml-large-v3-turbo-q5_0.bin",
		"ggml-base.bin",
		"ggml-small.bin",
		"ggml-tiny.bin",
		"ggml-base.en.bin",
	}
)

// WhisperConfig configures the whisper.cpp transcriber. Empty search lists
// fall back to the usual install locations under the home directory.
type WhisperConfig struct {
	Binary     string
	Model      string
	Language   string
	Threads    int
	BinaryDirs []string
	ModelDirs  []string
}

// WhisperStatus reports what the transcriber found on disk
type WhisperStatus struct {
	BinaryFound bool   `json:"binary_found"`
	BinaryPath  string `json:"binary_path,omitempty"`
	ModelFound  bool   `json:"model_found"`
	ModelPath   string `json:"model_path,omitempty"`
}

// WhisperTranscriber runs the whisper.cpp CLI
type WhisperTranscriber struct {
	cfg WhisperConfig
}

// NewWhisperTranscriber creates a transcriber
func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	home, _ := os.UserHomeDir()
	if cfg.BinaryDirs == nil {
		cfg.BinaryDirs = []string{
			filepath.Join(home, ".holoself", "bin"),
			filepath.Join(home, "whisper.cpp", "build", "bin"),
			filepath.Join(home, "whisper.cpp"),
			filepath.Join(home, ".local", "bin"),
			"/usr/local/bin",
			"/opt/homebrew/bin",
		}
	}
	if cfg.ModelDirs == nil {
		cfg.ModelDirs = []string{
			filepath.Join(home, ".holoself", "models"),
			filepath.Join(home, "whisper.cpp", "models"),
			filepath.Join(home, ".local", "share", "whisper"),
			filepath.Join(home, "Models"),
		}
	}
	if cfg.Language == "" {
		cfg.Language = "pt"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	return &WhisperTranscriber{cfg: cfg}
}

// Status reports whether the binary and model can be found
func (w *WhisperTranscriber) Status() WhisperStatus {
	var st WhisperStatus
	if p, err := w.findBinary(); err == nil {
		st.BinaryFound, st.BinaryPath = true, p
	}
	if p, err := w.findModel(); err == nil {
		st.ModelFound, st.ModelPath = true, p
	}
	return st
}

// Transcribe returns the text spoken in the audio file
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	binary, err := w.findBinary()
	if err != nil {
		return "", err
	}
	model, err := w.findModel()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"-m", model,
		"-f", audioPath,
		"-l", w.cfg.Language,
		"-nt",
		"-np",
		"-t", strconv.Itoa(w.cfg.Threads),
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("whisper.cpp: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(string(out)), nil
}

func (w *WhisperTranscriber) findBinary() (string, error) {
	if w.cfg.Binary != "" && fileExists(w.cfg.Binary) {
		return w.cfg.Binary, nil
	}
	for _, dir := range w.cfg.BinaryDirs {
		for _, name := range whisperBinaryNames {
			if p := filepath.Join(dir, name); fileExists(p) {
				return p, nil
			}
		}
	}
	for _, name := range whisperBinaryNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("whisper binary: %w", ErrNotConfigured)
}

func (w *WhisperTranscriber) findModel() (string, error) {
	if w.cfg.Model != "" && fileExists(w.cfg.Model) {
		return w.cfg.Model, nil
	}
	for _, dir := range w.cfg.ModelDirs {
		for _, name := range whisperModelNames {
			if p := filepath.Join(dir, name); fileExists(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("whisper model: %w", ErrNotConfigured)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
