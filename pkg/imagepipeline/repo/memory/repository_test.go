package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
	memoryrepo "github.com/tendant/image-pipeline/pkg/imagepipeline/repo/memory"
)

func drain(ch <-chan imagepipeline.ChangeEvent) []imagepipeline.ChangeEvent {
	var events []imagepipeline.ChangeEvent
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestCreateImage(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	require.NoError(t, repo.CreateImage(ctx, "x.png"))

	record, err := repo.GetImage(ctx, "x.png")
	require.NoError(t, err)
	assert.Equal(t, "x.png", record.ImageName)

	events := drain(repo.Changes())
	require.Len(t, events, 1)
	assert.Equal(t, imagepipeline.ChangeInsert, events[0].EventName)
	assert.Equal(t, "x.png", events[0].Change.NewImage[imagepipeline.KeyAttribute].S)

	t.Run("CreateExistingIsNoOp", func(t *testing.T) {
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.CaptionAttribute, "sunset"))
		drain(repo.Changes())

		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "sunset", record.Caption)
		assert.Empty(t, drain(repo.Changes()))
	})
}

func TestUpdateImageAttribute(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	require.NoError(t, repo.CreateImage(ctx, "x.png"))
	drain(repo.Changes())

	t.Run("SetsOnlyNamedAttribute", func(t *testing.T) {
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.CaptionAttribute, "sunset"))
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.DateAttribute, "2024-05-01"))
		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.PhotographerAttribute, "Ansel"))

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "sunset", record.Caption)
		assert.Equal(t, "2024-05-01", record.CapturedDate)
		assert.Equal(t, "Ansel", record.Photographer)
		assert.Empty(t, record.Status)

		events := drain(repo.Changes())
		require.Len(t, events, 3)
		for _, ev := range events {
			assert.Equal(t, imagepipeline.ChangeModify, ev.EventName)
		}
		// Old image of the first update has no caption; new image does.
		_, hadCaption := events[0].Change.OldImage[imagepipeline.CaptionAttribute]
		assert.False(t, hadCaption)
		assert.Equal(t, "sunset", events[0].Change.NewImage[imagepipeline.CaptionAttribute].S)
	})

	t.Run("MissingRecord", func(t *testing.T) {
		err := repo.UpdateImageAttribute(ctx, "missing.png", imagepipeline.CaptionAttribute, "v")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		err := repo.UpdateImageAttribute(ctx, "x.png", "nonsense", "v")
		assert.ErrorIs(t, err, imagepipeline.ErrUnknownAttribute)
	})
}

func TestUpdateImageStatus(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	require.NoError(t, repo.CreateImage(ctx, "x.png"))
	drain(repo.Changes())

	require.NoError(t, repo.UpdateImageStatus(ctx, "x.png", "REJECTED", "blurry"))

	record, err := repo.GetImage(ctx, "x.png")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", record.Status)
	assert.Equal(t, "blurry", record.Reason)

	events := drain(repo.Changes())
	require.Len(t, events, 1)
	assert.Equal(t, imagepipeline.ChangeModify, events[0].EventName)
	assert.Equal(t, "REJECTED", events[0].Change.NewImage[imagepipeline.StatusAttribute].S)
	_, hadStatus := events[0].Change.OldImage[imagepipeline.StatusAttribute]
	assert.False(t, hadStatus)

	t.Run("MissingRecord", func(t *testing.T) {
		err := repo.UpdateImageStatus(ctx, "missing.png", "APPROVED", "")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})
}

func TestGetImageReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	require.NoError(t, repo.CreateImage(ctx, "x.png"))

	record, err := repo.GetImage(ctx, "x.png")
	require.NoError(t, err)
	record.Caption = "mutated locally"

	fresh, err := repo.GetImage(ctx, "x.png")
	require.NoError(t, err)
	assert.Empty(t, fresh.Caption)
}
