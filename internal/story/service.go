package story

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Yorism7/STORYTALE/internal/models"
	"github.com/Yorism7/STORYTALE/internal/services"
	"golang.org/x/sync/semaphore"
)

// Errors the API layer maps to client statuses.
var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrEmptyEpisode    = errors.New("episode has no text")
)

// Generator produces story text and per-episode illustrations.
type Generator interface {
	GenerateStoryJSON(ctx context.Context, topic string, numEpisodes int, lang string) (*services.StoryData, error)
	GenerateImage(ctx context.Context, scenePrompt string, opts services.ImageOptions) ([]byte, error)
}

// Repository persists stories and their ordered episodes.
type Repository interface {
	NewID() string
	SaveStory(ctx context.Context, story *models.Story) error
	GetStory(ctx context.Context, id string) (*models.Story, error)
	ListStories(ctx context.Context, limit, offset int) ([]models.StoryListItem, error)
}

// Exporter renders a persisted story into a single MP4.
type Exporter interface {
	ExportStory(ctx context.Context, story *models.Story) ([]byte, error)
}

// Service orchestrates story generation and the on-demand audio/video
// paths against a persisted story.
type Service struct {
	repo     Repository
	gen      Generator
	tts      services.Synthesizer
	exporter Exporter

	// Video exports are CPU and disk heavy; a weighted semaphore bounds
	// how many run at once.
	exportSem *semaphore.Weighted
}

func New(repo Repository, gen Generator, tts services.Synthesizer, exporter Exporter, maxConcurrentExports int) *Service {
	if maxConcurrentExports < 1 {
		maxConcurrentExports = 1
	}
	return &Service{
		repo:      repo,
		gen:       gen,
		tts:       tts,
		exporter:  exporter,
		exportSem: semaphore.NewWeighted(int64(maxConcurrentExports)),
	}
}

// Generate runs the full generation pipeline: story text, one
// illustration per episode, then a single transactional save. A failed
// image call downgrades that one episode to an empty image reference;
// a failed text call fails the whole request and nothing is persisted.
func (s *Service) Generate(ctx context.Context, req *models.GenerateStoryRequest) (*models.GenerateStoryResponse, error) {
	lang := models.NormalizeLanguage(req.StoryLang)
	imageModel := models.NormalizeImageModel(req.ImageModel)

	data, err := s.gen.GenerateStoryJSON(ctx, req.Topic, req.NumEpisodes, lang)
	if err != nil {
		return nil, fmt.Errorf("story generation failed: %w", err)
	}

	// The prompt requests an exact count; truncate defensively if the
	// model returned more. Fewer episodes are persisted as-is.
	plans := data.Episodes
	if len(plans) > req.NumEpisodes {
		plans = plans[:req.NumEpisodes]
	}
	if len(plans) < req.NumEpisodes {
		log.Printf("[Story] Model returned %d episodes, requested %d", len(plans), req.NumEpisodes)
	}

	episodes := make([]models.Episode, 0, len(plans))
	for i, plan := range plans {
		scenePrompt := plan.ImagePrompt
		if scenePrompt == "" {
			scenePrompt = "children's book illustration"
		}

		imageURL := ""
		img, err := s.gen.GenerateImage(ctx, scenePrompt, services.ImageOptions{
			Model:                imageModel,
			StyleOverride:        req.ImageStyle,
			CharacterDescription: data.CharacterDescription,
			ArtStyle:             data.ArtStyle,
		})
		if err != nil {
			// Partial-failure policy: one missing illustration does not
			// abort the story.
			log.Printf("[Story] Image generation failed for episode %d: %v", i, err)
		} else {
			imageURL = models.EncodeImageDataURI(img)
		}

		episodes = append(episodes, models.Episode{
			Ordinal:     i,
			Text:        plan.Text,
			ImageURL:    imageURL,
			ImagePrompt: scenePrompt,
		})
	}

	st := &models.Story{
		ID:          s.repo.NewID(),
		Topic:       req.Topic,
		Title:       data.Title,
		NumEpisodes: len(episodes),
		CreatedAt:   time.Now().UTC(),
		Episodes:    episodes,
	}

	if err := s.repo.SaveStory(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	return &models.GenerateStoryResponse{
		StoryID:  st.ID,
		Title:    st.Title,
		Episodes: st.EpisodesOut(),
	}, nil
}

// Get returns the persisted story with episodes ordered by ordinal.
func (s *Service) Get(ctx context.Context, id string) (*models.Story, error) {
	return s.repo.GetStory(ctx, id)
}

// List returns stories newest first with first-episode preview images.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.StoryListItem, error) {
	return s.repo.ListStories(ctx, limit, offset)
}

// EpisodeAudio synthesizes narration for one episode on demand. Audio is
// never cached — every call re-synthesizes.
func (s *Service) EpisodeAudio(ctx context.Context, id string, index int) ([]byte, error) {
	st, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(st.Episodes) {
		return nil, ErrEpisodeNotFound
	}

	text := st.Episodes[index].Text
	if text == "" {
		return nil, ErrEmptyEpisode
	}

	return s.tts.TextToAudio(ctx, text, "")
}

// ExportVideo renders the story to MP4 bytes, bounded by the export
// semaphore so concurrent requests cannot saturate the host.
func (s *Service) ExportVideo(ctx context.Context, id string) ([]byte, error) {
	st, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.exportSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("export cancelled while waiting for slot: %w", err)
	}
	defer s.exportSem.Release(1)

	return s.exporter.ExportStory(ctx, st)
}
