package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Supported values for generation request fields. Anything else is
// normalized to the default rather than rejected.
const (
	LangEnglish = "en"
	LangThai    = "th"

	ImageModelFlux   = "flux"   // Flux Schnell
	ImageModelZImage = "zimage" // Z-Image Turbo
)

// NormalizeLanguage maps a requested story language onto the supported
// set, falling back to English.
func NormalizeLanguage(lang string) string {
	switch lang {
	case LangEnglish, LangThai:
		return lang
	default:
		return LangEnglish
	}
}

// NormalizeImageModel maps a requested image model onto the supported
// set, falling back to flux.
func NormalizeImageModel(model string) string {
	switch model {
	case ImageModelFlux, ImageModelZImage:
		return model
	default:
		return ImageModelFlux
	}
}

// Models

// Story is a generated narrative with its ordered episodes. Stories are
// write-once: created at the end of a successful generation, never
// updated or deleted.
type Story struct {
	ID          string    `json:"storyId"`
	Topic       string    `json:"topic"`
	Title       string    `json:"title"`
	NumEpisodes int       `json:"num_episodes"`
	CreatedAt   time.Time `json:"created_at"`
	Episodes    []Episode `json:"episodes,omitempty"`
}

// Episode is one chapter of a story: narrative text plus an illustration
// reference. ImageURL is either a JPEG data URI or "" when image
// generation failed for this episode. ImagePrompt is kept for
// traceability but not exposed on read paths.
type Episode struct {
	Ordinal     int    `json:"-"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl"`
	ImagePrompt string `json:"-"`
}

// DTOs for API requests and responses

type GenerateStoryRequest struct {
	Topic       string `json:"topic"`
	NumEpisodes int    `json:"num_episodes"` // 1-10, default 5
	StoryLang   string `json:"story_lang"`   // "en" | "th"
	ImageModel  string `json:"image_model"`  // "flux" | "zimage"
	ImageStyle  string `json:"image_style"`  // optional, <=100 chars
}

type EpisodeOut struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

type GenerateStoryResponse struct {
	StoryID  string       `json:"storyId"`
	Title    string       `json:"title"`
	Episodes []EpisodeOut `json:"episodes"`
}

type GetStoryResponse struct {
	StoryID     string       `json:"storyId"`
	Topic       string       `json:"topic"`
	Title       string       `json:"title"`
	NumEpisodes int          `json:"num_episodes"`
	CreatedAt   time.Time    `json:"created_at"`
	Episodes    []EpisodeOut `json:"episodes"`
}

// StoryListItem is a lightweight DTO for the list endpoint — no episodes
// array, just core story fields plus episode 0's image for preview.
type StoryListItem struct {
	StoryID              string    `json:"storyId"`
	Topic                string    `json:"topic"`
	Title                string    `json:"title"`
	NumEpisodes          int       `json:"num_episodes"`
	CreatedAt            time.Time `json:"created_at"`
	FirstEpisodeImageURL *string   `json:"first_episode_image_url"`
}

type ExportVideoRequest struct {
	StoryID string `json:"storyId"`
}

// EpisodesOut converts a story's episodes to the response shape.
func (s *Story) EpisodesOut() []EpisodeOut {
	out := make([]EpisodeOut, len(s.Episodes))
	for i, ep := range s.Episodes {
		out[i] = EpisodeOut{Text: ep.Text, ImageURL: ep.ImageURL}
	}
	return out
}

// Data URI helpers — episode images are embedded as self-contained data
// URIs so the service stays stateless with respect to binary assets.

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// EncodeImageDataURI wraps raw JPEG bytes in a data URI.
func EncodeImageDataURI(data []byte) string {
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(data)
}

// DecodeImageDataURI extracts the raw image bytes from a data URI.
func DecodeImageDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:image") {
		return nil, fmt.Errorf("not an image data URI")
	}
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: no payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return data, nil
}
