package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Yorism7/STORYTALE/internal/models"
)

// VideoExportService assembles a story into a single MP4: one clip per
// episode (image + synthesized narration, clip duration = audio
// duration), concatenated in episode order. Outputs are never persisted;
// the final container's bytes are returned to the caller.
type VideoExportService struct {
	tts    Synthesizer
	ffmpeg *FFmpegService
}

func NewVideoExportService(tts Synthesizer, ffmpeg *FFmpegService) *VideoExportService {
	return &VideoExportService{
		tts:    tts,
		ffmpeg: ffmpeg,
	}
}

// ExportStory renders the story to MP4 bytes. Episodes with empty text
// are skipped; an undecodable or empty image reference falls back to a
// solid-color placeholder frame. All intermediate files live in one
// scoped temp directory removed on every exit path.
func (s *VideoExportService) ExportStory(ctx context.Context, story *models.Story) ([]byte, error) {
	if len(story.Episodes) == 0 {
		return nil, fmt.Errorf("story %s has no episodes", story.ID)
	}

	tmpDir, err := os.MkdirTemp("", "storytale_export_")
	if err != nil {
		return nil, fmt.Errorf("failed to create export temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var clipPaths []string
	for i, ep := range story.Episodes {
		if ep.Text == "" {
			log.Printf("[Export] Story %s: skipping episode %d (no text)", story.ID, i)
			continue
		}

		audio, err := s.tts.TextToAudio(ctx, ep.Text, "")
		if err != nil {
			return nil, fmt.Errorf("tts failed for episode %d: %w", i, err)
		}

		audioPath := filepath.Join(tmpDir, fmt.Sprintf("ep%d.mp3", i))
		if err := os.WriteFile(audioPath, audio, 0644); err != nil {
			return nil, fmt.Errorf("failed to write episode %d audio: %w", i, err)
		}

		durationMs, err := s.ffmpeg.GetAudioDuration(ctx, audioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to probe episode %d audio: %w", i, err)
		}

		clipPath := filepath.Join(tmpDir, fmt.Sprintf("clip%d.mp4", i))
		if err := s.renderEpisode(ctx, ep, i, tmpDir, audioPath, clipPath, durationMs); err != nil {
			return nil, err
		}

		clipPaths = append(clipPaths, clipPath)
	}

	if len(clipPaths) == 0 {
		return nil, fmt.Errorf("story %s produced no usable clips", story.ID)
	}

	finalPath := filepath.Join(tmpDir, "story.mp4")
	if err := s.ffmpeg.ConcatenateClips(ctx, clipPaths, tmpDir, finalPath); err != nil {
		return nil, fmt.Errorf("failed to concatenate clips: %w", err)
	}

	video, err := os.ReadFile(finalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read exported video: %w", err)
	}

	log.Printf("[Export] Story %s: exported %d clips (%d bytes)", story.ID, len(clipPaths), len(video))
	return video, nil
}

// renderEpisode renders one episode clip, falling back to a placeholder
// frame when the image reference is empty or cannot be used.
func (s *VideoExportService) renderEpisode(ctx context.Context, ep models.Episode, index int, tmpDir, audioPath, clipPath string, durationMs int) error {
	if ep.ImageURL != "" {
		img, err := models.DecodeImageDataURI(ep.ImageURL)
		if err != nil {
			log.Printf("[Export] Episode %d: bad image reference, using placeholder: %v", index, err)
		} else {
			imagePath := filepath.Join(tmpDir, fmt.Sprintf("ep%d.jpg", index))
			if err := os.WriteFile(imagePath, img, 0644); err != nil {
				return fmt.Errorf("failed to write episode %d image: %w", index, err)
			}
			renderErr := s.ffmpeg.RenderEpisodeClip(ctx, imagePath, audioPath, clipPath)
			if renderErr == nil {
				return nil
			}
			log.Printf("[Export] Episode %d: image render failed, using placeholder: %v", index, renderErr)
		}
	}

	if err := s.ffmpeg.RenderPlaceholderClip(ctx, audioPath, clipPath, durationMs); err != nil {
		return fmt.Errorf("failed to render episode %d placeholder clip: %w", index, err)
	}
	return nil
}
