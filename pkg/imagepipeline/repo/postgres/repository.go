package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

const (
	feedDepth           = 1024
	defaultPollInterval = 200 * time.Millisecond
	feedBatchLimit      = 100
)

// attributeColumns whitelists the mutable metadata columns. Attribute names
// arrive from routed messages and are never interpolated unchecked.
var attributeColumns = map[string]string{
	imagepipeline.CaptionAttribute:      "caption",
	imagepipeline.DateAttribute:         "captured_date",
	imagepipeline.PhotographerAttribute: "photographer",
}

// Repository implements imagepipeline.Repository using PostgreSQL. Every
// mutation appends a row to the image_change log inside the same
// transaction; Changes tails that log in id order, which gives per-key
// commit order.
type Repository struct {
	pool         *pgxpool.Pool
	pollInterval time.Duration

	feedOnce sync.Once
	feed     chan imagepipeline.ChangeEvent
}

// NewWithPool creates a PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:         pool,
		pollInterval: defaultPollInterval,
		feed:         make(chan imagepipeline.ChangeEvent, feedDepth),
	}
}

// Migrate creates the image tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS image_record (
			image_name    TEXT PRIMARY KEY,
			caption       TEXT,
			captured_date TEXT,
			photographer  TEXT,
			status        TEXT,
			reason        TEXT
		);
		CREATE TABLE IF NOT EXISTS image_change (
			id         BIGSERIAL PRIMARY KEY,
			image_name TEXT NOT NULL,
			event_name TEXT NOT NULL,
			old_image  JSONB,
			new_image  JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to run image schema migration: %w", err)
	}
	return nil
}

// CreateImage inserts the key-only record. Creating an existing key is a
// no-op and appends no change row.
func (r *Repository) CreateImage(ctx context.Context, imageName string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO image_record (image_name) VALUES ($1) ON CONFLICT (image_name) DO NOTHING`,
			imageName)
		if err != nil {
			return fmt.Errorf("failed to insert image record %s: %w", imageName, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		record := imagepipeline.ImageRecord{ImageName: imageName}
		return r.appendChange(ctx, tx, imagepipeline.ChangeInsert, nil, &record)
	})
}

// UpdateImageAttribute sets one metadata column on an existing record.
func (r *Repository) UpdateImageAttribute(ctx context.Context, imageName, attribute, value string) error {
	column, ok := attributeColumns[attribute]
	if !ok {
		return imagepipeline.ErrUnknownAttribute
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		old, err := r.lockRecord(ctx, tx, imageName)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE image_record SET %s = $2 WHERE image_name = $1`, column),
			imageName, value); err != nil {
			return fmt.Errorf("failed to update %s for image record %s: %w", attribute, imageName, err)
		}

		updated := *old
		switch attribute {
		case imagepipeline.CaptionAttribute:
			updated.Caption = value
		case imagepipeline.DateAttribute:
			updated.CapturedDate = value
		case imagepipeline.PhotographerAttribute:
			updated.Photographer = value
		}
		return r.appendChange(ctx, tx, imagepipeline.ChangeModify, old, &updated)
	})
}

// UpdateImageStatus sets status and reason jointly on an existing record.
func (r *Repository) UpdateImageStatus(ctx context.Context, imageName, status, reason string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		old, err := r.lockRecord(ctx, tx, imageName)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE image_record SET status = $2, reason = $3 WHERE image_name = $1`,
			imageName, status, reason); err != nil {
			return fmt.Errorf("failed to update status for image record %s: %w", imageName, err)
		}

		updated := *old
		updated.Status = status
		updated.Reason = reason
		return r.appendChange(ctx, tx, imagepipeline.ChangeModify, old, &updated)
	})
}

// GetImage returns the record for the key.
func (r *Repository) GetImage(ctx context.Context, imageName string) (*imagepipeline.ImageRecord, error) {
	record, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT image_name, COALESCE(caption, ''), COALESCE(captured_date, ''),
		        COALESCE(photographer, ''), COALESCE(status, ''), COALESCE(reason, '')
		 FROM image_record WHERE image_name = $1`, imageName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, imagepipeline.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image record %s: %w", imageName, err)
	}
	return record, nil
}

// Changes tails the image_change log. The poller starts on first use and
// runs until the pool is closed.
func (r *Repository) Changes() <-chan imagepipeline.ChangeEvent {
	r.feedOnce.Do(func() {
		go r.pollChanges()
	})
	return r.feed
}

func (r *Repository) pollChanges() {
	ctx := context.Background()
	var lastID int64
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		rows, err := r.pool.Query(ctx,
			`SELECT id, event_name, old_image, new_image
			 FROM image_change WHERE id > $1 ORDER BY id LIMIT $2`,
			lastID, feedBatchLimit)
		if err != nil {
			if r.pool.Ping(ctx) != nil {
				return
			}
			slog.Error("Failed to poll image change log", "error", err)
			continue
		}
		for rows.Next() {
			var (
				id       int64
				name     string
				oldImage []byte
				newImage []byte
			)
			if err := rows.Scan(&id, &name, &oldImage, &newImage); err != nil {
				slog.Error("Failed to scan image change row", "error", err)
				break
			}
			event := imagepipeline.ChangeEvent{EventName: name}
			if err := decodeImage(oldImage, &event.Change.OldImage); err != nil {
				slog.Error("Failed to decode old image", "change_id", id, "error", err)
			}
			if err := decodeImage(newImage, &event.Change.NewImage); err != nil {
				slog.Error("Failed to decode new image", "change_id", id, "error", err)
			}
			lastID = id
			r.feed <- event
		}
		rows.Close()
	}
}

func (r *Repository) lockRecord(ctx context.Context, tx pgx.Tx, imageName string) (*imagepipeline.ImageRecord, error) {
	record, err := scanRecord(tx.QueryRow(ctx,
		`SELECT image_name, COALESCE(caption, ''), COALESCE(captured_date, ''),
		        COALESCE(photographer, ''), COALESCE(status, ''), COALESCE(reason, '')
		 FROM image_record WHERE image_name = $1 FOR UPDATE`, imageName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, imagepipeline.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to lock image record %s: %w", imageName, err)
	}
	return record, nil
}

func (r *Repository) appendChange(ctx context.Context, tx pgx.Tx, eventName string, old, updated *imagepipeline.ImageRecord) error {
	encode := func(rec *imagepipeline.ImageRecord) ([]byte, error) {
		if rec == nil {
			return nil, nil
		}
		return json.Marshal(rec.Attributes())
	}
	oldImage, err := encode(old)
	if err != nil {
		return fmt.Errorf("failed to encode old image: %w", err)
	}
	newImage, err := encode(updated)
	if err != nil {
		return fmt.Errorf("failed to encode new image: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO image_change (image_name, event_name, old_image, new_image) VALUES ($1, $2, $3, $4)`,
		updated.ImageName, eventName, oldImage, newImage); err != nil {
		return fmt.Errorf("failed to append image change: %w", err)
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanRecord(row pgx.Row) (*imagepipeline.ImageRecord, error) {
	var record imagepipeline.ImageRecord
	if err := row.Scan(&record.ImageName, &record.Caption, &record.CapturedDate,
		&record.Photographer, &record.Status, &record.Reason); err != nil {
		return nil, err
	}
	return &record, nil
}

func decodeImage(data []byte, image *map[string]imagepipeline.AttrValue) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, image)
}
