package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/Yorism7/STORYTALE/internal/db"
	"github.com/Yorism7/STORYTALE/internal/models"
	"github.com/Yorism7/STORYTALE/internal/story"
	"github.com/go-chi/chi/v5"
)

// StoryService is the orchestration surface the handlers depend on.
type StoryService interface {
	Generate(ctx context.Context, req *models.GenerateStoryRequest) (*models.GenerateStoryResponse, error)
	Get(ctx context.Context, id string) (*models.Story, error)
	List(ctx context.Context, limit, offset int) ([]models.StoryListItem, error)
	EpisodeAudio(ctx context.Context, id string, index int) ([]byte, error)
	ExportVideo(ctx context.Context, id string) ([]byte, error)
}

type Handler struct {
	stories StoryService
}

func NewHandler(stories StoryService) *Handler {
	return &Handler{stories: stories}
}

// GenerateStory handles POST /api/story/generate
func (h *Handler) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate
	topicLen := utf8.RuneCountInString(req.Topic)
	if topicLen < 1 || topicLen > 500 {
		respondError(w, http.StatusBadRequest, "Topic must be 1-500 characters")
		return
	}

	if req.NumEpisodes == 0 {
		req.NumEpisodes = 5
	}
	if req.NumEpisodes < 1 || req.NumEpisodes > 10 {
		respondError(w, http.StatusBadRequest, "num_episodes must be 1-10")
		return
	}

	if utf8.RuneCountInString(req.ImageStyle) > 100 {
		respondError(w, http.StatusBadRequest, "image_style must be at most 100 characters")
		return
	}

	resp, err := h.stories.Generate(r.Context(), &req)
	if err != nil {
		log.Printf("[API] Story generation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Story generation failed")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetStory handles GET /api/story/{id}
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.stories.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Story not found")
			return
		}
		log.Printf("[API] Failed to get story %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to get story")
		return
	}

	respondJSON(w, http.StatusOK, models.GetStoryResponse{
		StoryID:     st.ID,
		Topic:       st.Topic,
		Title:       st.Title,
		NumEpisodes: st.NumEpisodes,
		CreatedAt:   st.CreatedAt,
		Episodes:    st.EpisodesOut(),
	})
}

// ListStories handles GET /api/stories
// Query params:
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, err := h.stories.List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[API] Failed to list stories: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list stories")
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// GetEpisodeAudio handles GET /api/story/{id}/episode/{index}/audio
func (h *Handler) GetEpisodeAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid episode index")
		return
	}

	audio, err := h.stories.EpisodeAudio(r.Context(), id, index)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, "Story not found")
		case errors.Is(err, story.ErrEpisodeNotFound):
			respondError(w, http.StatusNotFound, "Episode not found")
		case errors.Is(err, story.ErrEmptyEpisode):
			respondError(w, http.StatusBadRequest, "Episode has no text")
		default:
			log.Printf("[API] Episode audio failed for story %s episode %d: %v", id, index, err)
			respondError(w, http.StatusInternalServerError, "Audio synthesis failed")
		}
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// ExportVideo handles POST /api/story/export-video
func (h *Handler) ExportVideo(w http.ResponseWriter, r *http.Request) {
	var req models.ExportVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.StoryID == "" {
		respondError(w, http.StatusBadRequest, "storyId is required")
		return
	}

	video, err := h.stories.ExportVideo(r.Context(), req.StoryID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Story not found")
			return
		}
		// Full detail stays server-side; the caller gets a generic message
		log.Printf("[API] Export failed for story %s: %v", req.StoryID, err)
		respondError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	w.Write(video)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
