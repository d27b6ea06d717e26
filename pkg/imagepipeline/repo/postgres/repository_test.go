package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

func TestCreateImage(t *testing.T) {
	RunTest(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()

		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "x.png", record.ImageName)
		assert.Empty(t, record.Status)

		// Redelivered create must not wipe attributes already set.
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.CaptionAttribute, "sunset"))
		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		record, err = repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "sunset", record.Caption)
	})
}

func TestUpdateImageAttribute(t *testing.T) {
	RunTest(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.CaptionAttribute, "sunset"))
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.DateAttribute, "2024-05-01"))
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.PhotographerAttribute, "Ansel"))

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "sunset", record.Caption)
		assert.Equal(t, "2024-05-01", record.CapturedDate)
		assert.Equal(t, "Ansel", record.Photographer)

		err = repo.UpdateImageAttribute(ctx, "missing.png", imagepipeline.CaptionAttribute, "v")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)

		err = repo.UpdateImageAttribute(ctx, "x.png", "nonsense", "v")
		assert.ErrorIs(t, err, imagepipeline.ErrUnknownAttribute)
	})
}

func TestUpdateImageStatus(t *testing.T) {
	RunTest(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		require.NoError(t, repo.UpdateImageStatus(ctx, "x.png", "REJECTED", "blurry"))

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "REJECTED", record.Status)
		assert.Equal(t, "blurry", record.Reason)

		err = repo.UpdateImageStatus(ctx, "missing.png", "APPROVED", "")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})
}

func TestChangeFeed(t *testing.T) {
	RunTest(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		feed := repo.Changes()

		require.NoError(t, repo.CreateImage(ctx, "x.png"))
		require.NoError(t, repo.UpdateImageStatus(ctx, "x.png", "APPROVED", "crisp"))

		events := collectEvents(t, feed, 2)
		assert.Equal(t, imagepipeline.ChangeInsert, events[0].EventName)
		assert.Equal(t, "x.png", events[0].Change.NewImage[imagepipeline.KeyAttribute].S)

		assert.Equal(t, imagepipeline.ChangeModify, events[1].EventName)
		assert.Equal(t, "APPROVED", events[1].Change.NewImage[imagepipeline.StatusAttribute].S)
		_, hadStatus := events[1].Change.OldImage[imagepipeline.StatusAttribute]
		assert.False(t, hadStatus)
	})
}

func collectEvents(t *testing.T, feed <-chan imagepipeline.ChangeEvent, n int) []imagepipeline.ChangeEvent {
	t.Helper()
	events := make([]imagepipeline.ChangeEvent, 0, n)
	deadline := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev := <-feed:
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for change events, got %d of %d", len(events), n)
		}
	}
	return events
}
