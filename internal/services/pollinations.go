package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Yorism7/STORYTALE/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// Chat model for story text; images use flux or zimage (caller's choice).
	chatModel = "gemini-fast"

	defaultImageWidth  = 1024
	defaultImageHeight = 1024

	// Fallback style when neither the caller nor the LLM supplied one.
	defaultImageStyle = "children's book illustration, soft colors, cartoon style, "

	// Fixed suffix appended to every image prompt.
	childSafetySuffix = "friendly, safe for kids, no violence, no dark themes"
)

type PollinationsService struct {
	chat    *openai.Client
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewPollinationsService creates a client for the Pollinations generation
// endpoints. The chat side speaks the OpenAI protocol at {base}/v1; the
// image side is a plain GET endpoint at {base}/image.
func NewPollinationsService(apiKey, baseURL string) *PollinationsService {
	baseURL = strings.TrimRight(baseURL, "/")

	chatCfg := openai.DefaultConfig(apiKey)
	chatCfg.BaseURL = baseURL + "/v1"

	return &PollinationsService{
		chat:    openai.NewClientWithConfig(chatCfg),
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

// StoryData is the parsed story reply: title, consistency descriptions
// carried once for the whole story, and the episode list.
type StoryData struct {
	Title                string        `json:"title"`
	CharacterDescription string        `json:"characterDescription"`
	ArtStyle             string        `json:"artStyle"`
	Episodes             []EpisodePlan `json:"episodes"`
}

// EpisodePlan is one episode as returned by the text model.
type EpisodePlan struct {
	Text        string `json:"text"`
	ImagePrompt string `json:"imagePrompt"`
}

// variationHints is the pool of randomized prompt hints that keep
// repeated requests for the same topic from converging on one story.
var variationHints = []string{
	"Create a unique, surprising version—avoid the most obvious plot.",
	"Tell a fresh take on this theme; surprise the reader with an unexpected twist or setting.",
	"Invent a different angle or character focus so this story feels new.",
	"Use an unusual setting or situation for this topic.",
	"Make the moral or journey different from the typical story for this theme.",
}

// GenerateStoryJSON asks the text model for a complete story and parses
// the JSON reply. lang selects English or Thai episode text; the
// consistency fields (characterDescription, artStyle) are always English
// because they feed the image prompts.
func (s *PollinationsService) GenerateStoryJSON(ctx context.Context, topic string, numEpisodes int, lang string) (*StoryData, error) {
	systemPrompt := buildStorySystemPrompt(numEpisodes, lang)

	seed := rand.Intn(999_999) + 1
	hint := variationHints[rand.Intn(len(variationHints))]
	userPrompt := fmt.Sprintf("Write a children's story about: %s. Use exactly %d episodes. [Variation seed: %d] %s",
		topic, numEpisodes, seed, hint)

	// Randomized temperature so the same topic yields different stories
	temperature := 0.75 + rand.Float64()*0.17

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: float32(temperature),
	})

	if err != nil {
		return nil, fmt.Errorf("pollinations chat request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from pollinations")
	}

	rawContent := resp.Choices[0].Message.Content
	content := stripCodeFence(rawContent)

	const maxLogLen = 2000

	var data StoryData
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		log.Printf("[Pollinations] story parse failed: %v", err)
		if len(rawContent) > maxLogLen {
			log.Printf("[Pollinations] raw response (truncated): %s...", rawContent[:maxLogLen])
		} else {
			log.Printf("[Pollinations] raw response: %s", rawContent)
		}
		return nil, fmt.Errorf("failed to parse story JSON: %w", err)
	}

	if data.Title == "" || len(data.Episodes) == 0 {
		log.Printf("[Pollinations] invalid story JSON (title=%q, episodes=%d)", data.Title, len(data.Episodes))
		return nil, fmt.Errorf("invalid story JSON: missing title or episodes")
	}

	data.CharacterDescription = strings.TrimSpace(data.CharacterDescription)
	data.ArtStyle = strings.TrimSpace(data.ArtStyle)

	log.Printf("[Pollinations] story generated: title=%q, episodes=%d, characterDescription=%t, artStyle=%t",
		data.Title, len(data.Episodes), data.CharacterDescription != "", data.ArtStyle != "")

	return &data, nil
}

// stripCodeFence removes an optional markdown code-block wrapper around
// the model's JSON reply.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// ImageOptions carries per-image settings for GenerateImage. Zero width
// and height use the 1024x1024 default. StyleOverride is the caller's
// style choice; when empty the story-level ArtStyle applies, then the
// hard-coded default.
type ImageOptions struct {
	Width                int
	Height               int
	Model                string // "flux" | "zimage"
	StyleOverride        string
	CharacterDescription string
	ArtStyle             string
}

// GenerateImage generates one illustration and returns the raw JPEG
// bytes. Fails on non-success status or network error — no retry.
func (s *PollinationsService) GenerateImage(ctx context.Context, scenePrompt string, opts ImageOptions) ([]byte, error) {
	width := opts.Width
	if width <= 0 {
		width = defaultImageWidth
	}
	height := opts.Height
	if height <= 0 {
		height = defaultImageHeight
	}
	model := models.NormalizeImageModel(opts.Model)

	prompt := composeImagePrompt(scenePrompt, opts)

	reqURL := fmt.Sprintf("%s/image/%s", s.baseURL, url.PathEscape(prompt))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	q := req.URL.Query()
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	q.Set("enhance", "false")
	q.Set("model", model)
	if s.apiKey != "" {
		q.Set("key", s.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("image endpoint returned empty body")
	}

	return data, nil
}

// composeImagePrompt builds the full image prompt. The invariant parts
// of the story's look (character description, art style) are re-injected
// into every per-episode call so illustrations stay visually consistent;
// the scene prompt carries only the moment being depicted.
func composeImagePrompt(scenePrompt string, opts ImageOptions) string {
	base := ""
	if cd := strings.TrimSpace(opts.CharacterDescription); cd != "" {
		base = cd + ". "
	}

	var stylePart string
	if so := strings.TrimSpace(opts.StyleOverride); so != "" {
		// Caller-chosen style becomes the dominant look for the whole story
		stylePart = so + ", same visual style and character design in every scene, consistent throughout the story, "
	} else {
		if as := strings.TrimSpace(opts.ArtStyle); as != "" {
			stylePart = as + ", "
		} else {
			stylePart = defaultImageStyle
		}
		stylePart += "same visual style and character design in every scene, "
	}

	return fmt.Sprintf("%s%s, %s%s", base, scenePrompt, stylePart, childSafetySuffix)
}

func buildStorySystemPrompt(numEpisodes int, lang string) string {
	langRule := `Write the story title and ALL episode "text" in English.`
	if lang == models.LangThai {
		langRule = `Write the story title and ALL episode "text" in Thai (ภาษาไทย).`
	}

	return fmt.Sprintf(`You are a children's story writer for ages 3–8. Create a short, wholesome story with exactly %d episodes (chapters).

CRITICAL – Consistent look in every illustration (same characters + same art style):
- Add "characterDescription": one short English phrase for the main characters' appearance so they look THE SAME in every picture (e.g. "a small brown rabbit with white belly and pink ears, a green turtle with round shell and friendly smile").
- Add "artStyle": one short English phrase for the VISUAL STYLE of all illustrations, so every image looks like the same book. Be specific: technique, colors, mood (e.g. "soft watercolor painting, pastel colors, rounded shapes, warm lighting, gentle shadows" or "flat cartoon style, bright colors, clean lines, friendly and cheerful"). This will be applied to every episode image.
- Each episode "imagePrompt" = only the SCENE or action for that moment (where they are, what they do). Do NOT repeat character looks or art style in each imagePrompt.

Rules:
- %s
- Each episode: "text" = 2–4 short sentences, simple words, positive message.
- Each episode: "imagePrompt" = one English phrase for the scene/situation only, e.g. "in a sunny forest by a stream", "at the finish line cheering".
- No violence, no fear; gentle and safe for kids.

Output ONLY valid JSON, no markdown or extra text:
{"title": "Story title", "characterDescription": "short visual description of main characters", "artStyle": "short description of illustration style for the whole story", "episodes": [{"text": "...", "imagePrompt": "..."}, ...]}`,
		numEpisodes, langRule)
}
