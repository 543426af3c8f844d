// Package store persists trained forests and keeps a registry of model
// versions and prediction runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"audio-classification/forest"
	"audio-classification/models"
	"audio-classification/utils"

	"github.com/google/uuid"
)

// ErrStorage wraps every failure to write, find or decode a model artifact.
var ErrStorage = errors.New("model storage error")

// DefaultArtifactName is the fixed file the latest model is written to.
const DefaultArtifactName = "rf_model.bin"

const versionsDir = "versions"

// FileStore keeps model artifacts under Dir. Every save writes an immutable
// versions/<id>.bin and then replaces ArtifactName atomically.
type FileStore struct {
	Dir          string
	ArtifactName string
}

// NewFileStore returns a store rooted at dir using the default artifact name.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, ArtifactName: DefaultArtifactName}
}

func (s *FileStore) artifactPath() string {
	name := s.ArtifactName
	if name == "" {
		name = DefaultArtifactName
	}
	return filepath.Join(s.Dir, name)
}

func (s *FileStore) versionPath(version string) string {
	return filepath.Join(s.Dir, versionsDir, version+".bin")
}

// ArtifactPath is where Load reads from.
func (s *FileStore) ArtifactPath() string { return s.artifactPath() }

// Save encodes model and writes it as a new version. meta is completed with
// the version, timestamp, path and model shape.
func (s *FileStore) Save(ctx context.Context, model *forest.Forest, meta models.ModelInfo) (models.ModelInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.ModelInfo{}, err
	}
	data, err := model.MarshalBinary()
	if err != nil {
		return models.ModelInfo{}, fmt.Errorf("%w: encode model: %v", ErrStorage, err)
	}

	if err := utils.CreateFolder(filepath.Join(s.Dir, versionsDir)); err != nil {
		return models.ModelInfo{}, fmt.Errorf("%w: create model directory: %v", ErrStorage, err)
	}

	meta.Version = uuid.NewString()
	meta.CreatedAt = time.Now().UTC()
	meta.ArtifactPath = s.versionPath(meta.Version)
	meta.NumFeatures = model.NumFeatures()
	meta.Classes = model.Classes()
	meta.Trees = model.NumTrees()

	if err := writeAtomic(meta.ArtifactPath, data); err != nil {
		return models.ModelInfo{}, err
	}
	if err := writeAtomic(s.artifactPath(), data); err != nil {
		return models.ModelInfo{}, err
	}
	return meta, nil
}

// Load reads the fixed-name artifact.
func (s *FileStore) Load(ctx context.Context) (*forest.Forest, error) {
	return s.read(ctx, s.artifactPath())
}

// LoadVersion reads one immutable version.
func (s *FileStore) LoadVersion(ctx context.Context, version string) (*forest.Forest, error) {
	if _, err := uuid.Parse(version); err != nil {
		return nil, fmt.Errorf("%w: invalid model version %q", ErrStorage, version)
	}
	return s.read(ctx, s.versionPath(version))
}

func (s *FileStore) read(ctx context.Context, path string) (*forest.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no model at %s", ErrStorage, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}

	var model forest.Forest
	if err := model.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, path, err)
	}
	return &model, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrStorage, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrStorage, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, path, err)
	}
	return nil
}
