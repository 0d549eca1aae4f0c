package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

// LipSyncer extracts mouth cues from a waveform.
type LipSyncer interface {
	Analyze(ctx context.Context, name string, wav []byte) (*chat.LipSync, error)
}

// Rhubarb runs the rhubarb-lip-sync executable on WAV audio.
type Rhubarb struct {
	binary  string
	workDir string
}

// NewRhubarb returns a runner for the executable at binary. Scratch files go
// under workDir, or the OS temp dir when empty.
func NewRhubarb(binary, workDir string) *Rhubarb {
	return &Rhubarb{binary: binary, workDir: workDir}
}

// Analyze writes the waveform to a scratch directory, runs the phonetic
// recognizer and reads the JSON transcript back. The directory is removed
// before returning.
func (r *Rhubarb) Analyze(ctx context.Context, name string, wav []byte) (*chat.LipSync, error) {
	if r.workDir != "" {
		if err := os.MkdirAll(r.workDir, 0o755); err != nil {
			return nil, fmt.Errorf("create audio dir: %w", err)
		}
	}

	dir, err := os.MkdirTemp(r.workDir, "lipsync-*")
	if err != nil {
		return nil, fmt.Errorf("create lipsync workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, name+".wav")
	jsonPath := filepath.Join(dir, name+".json")
	if err := os.WriteFile(wavPath, wav, 0o644); err != nil {
		return nil, fmt.Errorf("write waveform: %w", err)
	}

	started := time.Now()
	// -r phonetic 更快，精度略低
	cmd := exec.CommandContext(ctx, r.binary, "-f", "json", "-o", jsonPath, wavPath, "-r", "phonetic")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rhubarb %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	log.Printf("[lipsync] %s: %s", name, time.Since(started).Round(time.Millisecond))

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read lipsync transcript: %w", err)
	}

	var transcript chat.LipSync
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("parse lipsync transcript: %w", err)
	}
	return &transcript, nil
}
