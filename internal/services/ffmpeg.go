package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Output constants — square storybook frames at a fixed frame rate.
const (
	videoFPS          = 24
	placeholderWidth  = 1024
	placeholderHeight = 1024
)

// FFmpegService shells out to ffmpeg/ffprobe for clip rendering,
// concatenation, and duration probing.
type FFmpegService struct{}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

// RenderEpisodeClip creates a video clip from a still image and its
// narration audio. The clip ends when the audio ends.
func (s *FFmpegService) RenderEpisodeClip(ctx context.Context, imagePath, audioPath, outputPath string) error {
	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		// Image dimensions must be even for yuv420p
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-r", fmt.Sprintf("%d", videoFPS),
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg render episode clip failed: %w", err)
	}

	return nil
}

// RenderPlaceholderClip creates a clip from a solid white frame and the
// narration audio, used when an episode's image reference is empty or
// cannot be decoded.
func (s *FFmpegService) RenderPlaceholderClip(ctx context.Context, audioPath, outputPath string, durationMs int) error {
	if durationMs <= 0 {
		durationMs = 1000
	}

	colorSrc := fmt.Sprintf("color=c=white:s=%dx%d:r=%d:d=%.3f",
		placeholderWidth, placeholderHeight, videoFPS, float64(durationMs)/1000.0)

	args := []string{
		"-f", "lavfi",
		"-i", colorSrc,
		"-i", audioPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg render placeholder clip failed: %w", err)
	}

	return nil
}

// ConcatenateClips combines the per-episode clips into one video. The
// concat list file is written into listDir (the caller's scoped temp
// directory) so it is cleaned up with everything else.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, listDir, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(listDir, "concat_list.txt")
	var list strings.Builder
	for _, path := range clipPaths {
		// FFmpeg concat format
		fmt.Fprintf(&list, "file '%s'\n", path)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // All clips share encoding parameters
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}

	return nil
}

// GetAudioDuration returns the duration of an audio file in milliseconds.
func (s *FFmpegService) GetAudioDuration(ctx context.Context, audioPath string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}
