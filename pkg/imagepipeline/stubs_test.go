package imagepipeline_test

import (
	"context"

	imagepipeline "github.com/tendant/image-pipeline/pkg/imagepipeline"
)

// failingRepository fails every mutation with the given error.
type failingRepository struct {
	imagepipeline.Repository
	err error
}

func (r failingRepository) CreateImage(ctx context.Context, imageName string) error {
	return r.err
}

func (r failingRepository) UpdateImageAttribute(ctx context.Context, imageName, attribute, value string) error {
	return r.err
}

func (r failingRepository) UpdateImageStatus(ctx context.Context, imageName, status, reason string) error {
	return r.err
}

// failingStore fails every deletion with the given error.
type failingStore struct {
	imagepipeline.ObjectStore
	err error
}

func (s failingStore) Delete(ctx context.Context, key string) error {
	return s.err
}
