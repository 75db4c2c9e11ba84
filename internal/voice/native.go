package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// nativeVoices are tried in order: PT-BR, PT-PT, system default
var nativeVoices = []string{"Luciana", "Daniel", ""}

// NativeSynthesizer uses the macOS say and afconvert commands
type NativeSynthesizer struct {
	tempDir string
}

// NewNativeSynthesizer creates a synthesizer writing scratch files under tempDir
func NewNativeSynthesizer(tempDir string) *NativeSynthesizer {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "holoself")
	}
	return &NativeSynthesizer{tempDir: tempDir}
}

// Available reports whether the say command exists
func (n *NativeSynthesizer) Available() bool {
	_, err := exec.LookPath("say")
	return err == nil
}

// Synthesize renders text with say and converts it to 24kHz 16-bit WAV
func (n *NativeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !n.Available() {
		return nil, fmt.Errorf("native tts: %w", ErrNotConfigured)
	}
	if err := os.MkdirAll(n.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	dir, err := os.MkdirTemp(n.tempDir, "tts-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	aiffPath := filepath.Join(dir, "out.aiff")
	wavPath := filepath.Join(dir, "out.wav")

	var lastErr error
	spoken := false
	for _, v := range nativeVoices {
		args := []string{}
		if v != "" {
			args = append(args, "-v", v)
		}
		args = append(args, "-o", aiffPath, text)
		if out, err := exec.CommandContext(ctx, "say", args...).CombinedOutput(); err != nil {
			lastErr = fmt.Errorf("say %s: %w: %s", v, err, out)
			continue
		}
		spoken = true
		break
	}
	if !spoken {
		return nil, fmt.Errorf("say failed with all voices: %w", lastErr)
	}

	out, err := exec.CommandContext(ctx, "afconvert", "-f", "WAVE", "-d", "LEI16@24000", aiffPath, wavPath).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("afconvert: %w: %s", err, out)
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return audio, nil
}
