package store

import (
	"context"
	"errors"
	"fmt"

	"audio-classification/forest"
	"audio-classification/models"
)

// Store pairs artifact files with the registry. Registry may be nil.
type Store struct {
	Files    *FileStore
	Registry Registry
}

// New returns a Store over files and registry.
func New(files *FileStore, registry Registry) *Store {
	return &Store{Files: files, Registry: registry}
}

// Save writes the artifact and records its version. A registry failure is
// reported after the artifact is already on disk.
func (s *Store) Save(ctx context.Context, model *forest.Forest, meta models.ModelInfo) (models.ModelInfo, error) {
	info, err := s.Files.Save(ctx, model, meta)
	if err != nil {
		return models.ModelInfo{}, err
	}
	if s.Registry != nil {
		if err := s.Registry.Record(ctx, info); err != nil {
			return info, fmt.Errorf("%w: register version %s: %v", ErrStorage, info.Version, err)
		}
	}
	return info, nil
}

// Latest loads the fixed-name artifact together with the newest registry
// entry, if any.
func (s *Store) Latest(ctx context.Context) (*forest.Forest, models.ModelInfo, error) {
	model, err := s.Files.Load(ctx)
	if err != nil {
		return nil, models.ModelInfo{}, err
	}
	info := models.ModelInfo{
		ArtifactPath: s.Files.ArtifactPath(),
		NumFeatures:  model.NumFeatures(),
		Classes:      model.Classes(),
		Trees:        model.NumTrees(),
	}
	if s.Registry != nil {
		infos, err := s.Registry.List(ctx, 1)
		if err != nil {
			return nil, models.ModelInfo{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if len(infos) > 0 {
			info = infos[0]
		}
	}
	return model, info, nil
}

// Version loads a specific saved version.
func (s *Store) Version(ctx context.Context, version string) (*forest.Forest, models.ModelInfo, error) {
	info := models.ModelInfo{Version: version}
	if s.Registry != nil {
		found, ok, err := s.Registry.Get(ctx, version)
		if err != nil {
			return nil, models.ModelInfo{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if !ok {
			return nil, models.ModelInfo{}, fmt.Errorf("%w: unknown model version %s", ErrStorage, version)
		}
		info = found
	}
	model, err := s.Files.LoadVersion(ctx, version)
	if err != nil {
		return nil, models.ModelInfo{}, err
	}
	return model, info, nil
}

// Close releases the registry.
func (s *Store) Close() error {
	if s.Registry == nil {
		return nil
	}
	return s.Registry.Close()
}

// IsStorageError reports whether err came from the store.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}
