package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ---------------------------------------------------------------------------
// Synthesizer — common interface for text-to-speech engines so the story
// service and video export can use whichever is wired without knowing
// the underlying provider.
// ---------------------------------------------------------------------------

// Synthesizer converts episode text into encoded audio bytes.
type Synthesizer interface {
	// TextToAudio returns MP3 bytes for the given text. voice overrides
	// the engine's default voice when non-empty.
	TextToAudio(ctx context.Context, text, voice string) ([]byte, error)
}

// DefaultVoice narrates the storybook's primary language.
const DefaultVoice = "th-TH-PremwadeeNeural"

// EdgeTTSService synthesizes speech through the edge-tts CLI. The engine
// only writes to a file path, so each call goes through a scoped
// temporary file that is removed on every exit path.
type EdgeTTSService struct {
	voice string
}

var _ Synthesizer = (*EdgeTTSService)(nil)

// NewEdgeTTSService creates a TTS service with the given default voice
// (empty falls back to DefaultVoice).
func NewEdgeTTSService(voice string) *EdgeTTSService {
	if voice == "" {
		voice = DefaultVoice
	}
	return &EdgeTTSService{voice: voice}
}

// TextToAudio implements Synthesizer.
func (s *EdgeTTSService) TextToAudio(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}
	if voice == "" {
		voice = s.voice
	}

	f, err := os.CreateTemp("", "storytale_tts_*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, "edge-tts",
		"--voice", voice,
		"--text", text,
		"--write-media", path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("edge-tts failed: %w (%s)", err, stderr.String())
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("edge-tts produced empty audio")
	}

	return audio, nil
}
