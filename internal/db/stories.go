package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/Yorism7/STORYTALE/internal/models"
	"github.com/google/uuid"
)

// NewID produces an opaque unique story identifier.
func (db *DB) NewID() string {
	return uuid.NewString()
}

// SaveStory inserts the story and all its episodes in one transaction.
// Episodes receive ordinals 0..N-1 in the order given; either every row
// is written or none is.
func (db *DB) SaveStory(ctx context.Context, story *models.Story) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO stories (id, topic, title, num_episodes, created_at) VALUES (?, ?, ?, ?, ?)`,
		story.ID, story.Topic, story.Title, story.NumEpisodes,
		story.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}

	for i, ep := range story.Episodes {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO episodes (story_id, ordinal, text, image_url, image_prompt) VALUES (?, ?, ?, ?, ?)`,
			story.ID, i, ep.Text, ep.ImageURL, ep.ImagePrompt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert episode %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit story: %w", err)
	}

	log.Printf("[DB] Saved story %s with %d episodes", story.ID, len(story.Episodes))
	return nil
}

// GetStory returns the story with its episodes ordered by ordinal, or
// ErrNotFound.
func (db *DB) GetStory(ctx context.Context, id string) (*models.Story, error) {
	story := &models.Story{}
	var createdAt string

	err := db.QueryRowContext(
		ctx,
		`SELECT id, topic, title, num_episodes, created_at FROM stories WHERE id = ?`,
		id,
	).Scan(&story.ID, &story.Topic, &story.Title, &story.NumEpisodes, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	story.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse story timestamp: %w", err)
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT ordinal, text, image_url, image_prompt FROM episodes WHERE story_id = ? ORDER BY ordinal`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ep models.Episode
		var prompt sql.NullString
		if err := rows.Scan(&ep.Ordinal, &ep.Text, &ep.ImageURL, &prompt); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		ep.ImagePrompt = prompt.String
		story.Episodes = append(story.Episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read episodes: %w", err)
	}

	return story, nil
}

// ListStories returns stories newest first, each annotated with episode
// 0's image reference for preview.
func (db *DB) ListStories(ctx context.Context, limit, offset int) ([]models.StoryListItem, error) {
	rows, err := db.QueryContext(
		ctx,
		`SELECT s.id, s.topic, s.title, s.num_episodes, s.created_at,
			(SELECT e.image_url FROM episodes e WHERE e.story_id = s.id ORDER BY e.ordinal LIMIT 1) AS first_episode_image_url
		 FROM stories s ORDER BY s.created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	items := make([]models.StoryListItem, 0)
	for rows.Next() {
		var item models.StoryListItem
		var createdAt string
		var preview sql.NullString
		if err := rows.Scan(&item.StoryID, &item.Topic, &item.Title, &item.NumEpisodes, &createdAt, &preview); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse story timestamp: %w", err)
		}
		if preview.Valid && preview.String != "" {
			item.FirstEpisodeImageURL = &preview.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stories: %w", err)
	}

	return items, nil
}
