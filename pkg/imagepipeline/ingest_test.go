package imagepipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	imagepipeline "github.com/tendant/image-pipeline/pkg/imagepipeline"
	memoryrepo "github.com/tendant/image-pipeline/pkg/imagepipeline/repo/memory"
)

func TestIngestorHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidExtensionCreatesRecord", func(t *testing.T) {
		repo := memoryrepo.New()
		ingestor := imagepipeline.NewIngestor(repo)

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectCreatedEvent("sunset.png", "beach.jpeg")),
		}
		require.NoError(t, ingestor.Handle(ctx, msg))

		record, err := repo.GetImage(ctx, "sunset.png")
		require.NoError(t, err)
		assert.Equal(t, "sunset.png", record.ImageName)

		_, err = repo.GetImage(ctx, "beach.jpeg")
		require.NoError(t, err)
	})

	t.Run("ReprocessingIsIdempotent", func(t *testing.T) {
		repo := memoryrepo.New()
		ingestor := imagepipeline.NewIngestor(repo)

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectCreatedEvent("sunset.png")),
		}
		require.NoError(t, ingestor.Handle(ctx, msg))
		require.NoError(t, repo.UpdateImageAttribute(ctx, "sunset.png", imagepipeline.CaptionAttribute, "golden hour"))

		// Redelivery of the same creation event must not disturb the record.
		require.NoError(t, ingestor.Handle(ctx, msg))

		record, err := repo.GetImage(ctx, "sunset.png")
		require.NoError(t, err)
		assert.Equal(t, "golden hour", record.Caption)
	})

	t.Run("InvalidExtensionFailsMessage", func(t *testing.T) {
		repo := memoryrepo.New()
		ingestor := imagepipeline.NewIngestor(repo)

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectCreatedEvent("virus.exe")),
		}
		err := ingestor.Handle(ctx, msg)
		var validationErr *imagepipeline.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "virus.exe", validationErr.Key)
		assert.Equal(t, "exe", validationErr.Extension)

		_, err = repo.GetImage(ctx, "virus.exe")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})

	t.Run("UppercaseExtensionAccepted", func(t *testing.T) {
		repo := memoryrepo.New()
		ingestor := imagepipeline.NewIngestor(repo)

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectCreatedEvent("LOUD.PNG")),
		}
		require.NoError(t, ingestor.Handle(ctx, msg))

		_, err := repo.GetImage(ctx, "LOUD.PNG")
		require.NoError(t, err)
	})

	t.Run("RemovalRecordIgnored", func(t *testing.T) {
		repo := memoryrepo.New()
		ingestor := imagepipeline.NewIngestor(repo)

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectRemovedEvent("gone.png")),
		}
		require.NoError(t, ingestor.Handle(ctx, msg))

		_, err := repo.GetImage(ctx, "gone.png")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})

	t.Run("TableFailurePropagates", func(t *testing.T) {
		tableDown := errors.New("table down")
		ingestor := imagepipeline.NewIngestor(failingRepository{err: tableDown})

		msg := imagepipeline.Message{
			ID:   "m1",
			Body: wrapStorageEvent(t, imagepipeline.NewObjectCreatedEvent("sunset.png")),
		}
		err := ingestor.Handle(ctx, msg)
		assert.ErrorIs(t, err, tableDown)
	})

	t.Run("MalformedEnvelopeFailsMessage", func(t *testing.T) {
		ingestor := imagepipeline.NewIngestor(memoryrepo.New())
		err := ingestor.Handle(ctx, imagepipeline.Message{ID: "m1", Body: []byte("garbage")})
		var envErr *imagepipeline.EnvelopeError
		assert.ErrorAs(t, err, &envErr)
	})
}
