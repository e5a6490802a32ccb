package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Yorism7/STORYTALE/internal/db"
	"github.com/Yorism7/STORYTALE/internal/models"
	"github.com/Yorism7/STORYTALE/internal/story"
)

type fakeStoryService struct {
	generateResp *models.GenerateStoryResponse
	generateErr  error
	generateReq  *models.GenerateStoryRequest

	stories map[string]*models.Story
	items   []models.StoryListItem

	audio    []byte
	audioErr error

	video     []byte
	exportErr error
}

func (f *fakeStoryService) Generate(ctx context.Context, req *models.GenerateStoryRequest) (*models.GenerateStoryResponse, error) {
	f.generateReq = req
	return f.generateResp, f.generateErr
}

func (f *fakeStoryService) Get(ctx context.Context, id string) (*models.Story, error) {
	if st, ok := f.stories[id]; ok {
		return st, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStoryService) List(ctx context.Context, limit, offset int) ([]models.StoryListItem, error) {
	return f.items, nil
}

func (f *fakeStoryService) EpisodeAudio(ctx context.Context, id string, index int) ([]byte, error) {
	return f.audio, f.audioErr
}

func (f *fakeStoryService) ExportVideo(ctx context.Context, id string) ([]byte, error) {
	if _, ok := f.stories[id]; !ok {
		return nil, db.ErrNotFound
	}
	return f.video, f.exportErr
}

func newTestRouter(svc *fakeStoryService) http.Handler {
	return NewRouter(NewHandler(svc), RouterConfig{})
}

func TestGenerateStoryValidation(t *testing.T) {
	router := newTestRouter(&fakeStoryService{})

	cases := []struct {
		name string
		body string
	}{
		{"missing topic", `{"num_episodes": 3}`},
		{"topic too long", `{"topic": "` + strings.Repeat("x", 501) + `"}`},
		{"too many episodes", `{"topic": "a rabbit", "num_episodes": 11}`},
		{"negative episodes", `{"topic": "a rabbit", "num_episodes": -1}`},
		{"style too long", `{"topic": "a rabbit", "image_style": "` + strings.Repeat("s", 101) + `"}`},
		{"malformed json", `{"topic": `},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/story/generate", strings.NewReader(c.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateStoryDefaultsEpisodeCount(t *testing.T) {
	svc := &fakeStoryService{
		generateResp: &models.GenerateStoryResponse{StoryID: "s1", Title: "T"},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest("POST", "/api/story/generate", strings.NewReader(`{"topic": "a rabbit"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.generateReq == nil || svc.generateReq.NumEpisodes != 5 {
		t.Errorf("expected default of 5 episodes, got %+v", svc.generateReq)
	}
}

func TestGenerateStoryFailure(t *testing.T) {
	svc := &fakeStoryService{generateErr: errors.New("model down")}
	router := newTestRouter(svc)

	req := httptest.NewRequest("POST", "/api/story/generate", strings.NewReader(`{"topic": "a rabbit"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "model down") {
		t.Error("internal error detail must not leak to the client")
	}
}

func TestGetStory(t *testing.T) {
	svc := &fakeStoryService{stories: map[string]*models.Story{
		"s1": {
			ID:          "s1",
			Topic:       "a rabbit",
			Title:       "The Brave Rabbit",
			NumEpisodes: 1,
			CreatedAt:   time.Now().UTC(),
			Episodes:    []models.Episode{{Ordinal: 0, Text: "Once.", ImageURL: "data:image/jpeg;base64,aGk="}},
		},
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest("GET", "/api/story/s1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp models.GetStoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.StoryID != "s1" || resp.Title != "The Brave Rabbit" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Episodes) != 1 || resp.Episodes[0].Text != "Once." {
		t.Errorf("unexpected episodes: %+v", resp.Episodes)
	}
}

func TestGetStoryNotFound(t *testing.T) {
	router := newTestRouter(&fakeStoryService{})

	req := httptest.NewRequest("GET", "/api/story/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListStories(t *testing.T) {
	preview := "data:image/jpeg;base64,aGk="
	svc := &fakeStoryService{items: []models.StoryListItem{
		{StoryID: "s2", Title: "Newer", FirstEpisodeImageURL: &preview},
		{StoryID: "s1", Title: "Older"},
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest("GET", "/api/stories?limit=10&offset=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []models.StoryListItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(items) != 2 || items[0].StoryID != "s2" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestGetEpisodeAudio(t *testing.T) {
	svc := &fakeStoryService{audio: []byte("mp3-bytes")}
	router := newTestRouter(svc)

	req := httptest.NewRequest("GET", "/api/story/s1/episode/0/audio", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %q", ct)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestGetEpisodeAudioErrors(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		audioErr error
		want     int
	}{
		{"non-numeric index", "/api/story/s1/episode/abc/audio", nil, http.StatusBadRequest},
		{"story not found", "/api/story/missing/episode/0/audio", db.ErrNotFound, http.StatusNotFound},
		{"episode not found", "/api/story/s1/episode/9/audio", story.ErrEpisodeNotFound, http.StatusNotFound},
		{"empty episode", "/api/story/s1/episode/0/audio", story.ErrEmptyEpisode, http.StatusBadRequest},
		{"synthesis failure", "/api/story/s1/episode/0/audio", errors.New("edge-tts missing"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			router := newTestRouter(&fakeStoryService{audioErr: c.audioErr})

			req := httptest.NewRequest("GET", c.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != c.want {
				t.Errorf("expected %d, got %d: %s", c.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestExportVideoEndpoint(t *testing.T) {
	svc := &fakeStoryService{
		stories: map[string]*models.Story{"s1": {ID: "s1"}},
		video:   []byte("mp4-bytes"),
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest("POST", "/api/story/export-video", strings.NewReader(`{"storyId": "s1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %q", ct)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestExportVideoErrors(t *testing.T) {
	t.Run("missing storyId", func(t *testing.T) {
		router := newTestRouter(&fakeStoryService{})
		req := httptest.NewRequest("POST", "/api/story/export-video", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("story not found", func(t *testing.T) {
		router := newTestRouter(&fakeStoryService{})
		req := httptest.NewRequest("POST", "/api/story/export-video", strings.NewReader(`{"storyId": "missing"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("render failure", func(t *testing.T) {
		svc := &fakeStoryService{
			stories:   map[string]*models.Story{"s1": {ID: "s1"}},
			exportErr: errors.New("ffmpeg exploded"),
		}
		router := newTestRouter(svc)
		req := httptest.NewRequest("POST", "/api/story/export-video", strings.NewReader(`{"storyId": "s1"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "ffmpeg") {
			t.Error("internal error detail must not leak to the client")
		}
	})
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeStoryService{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownAPIPathReturnsJSON404(t *testing.T) {
	router := newTestRouter(&fakeStoryService{})

	req := httptest.NewRequest("GET", "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON 404 for API path, got %q", ct)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	router := NewRouter(NewHandler(&fakeStoryService{items: []models.StoryListItem{}}), RouterConfig{
		BackendAPIKey: "topsecret",
	})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stories", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stories", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("x-api-key header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stories", nil)
		req.Header.Set("X-API-Key", "topsecret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stories", nil)
		req.Header.Set("Authorization", "Bearer topsecret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("health stays public", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}
