package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"backend/internal/classifier"
	"backend/internal/embedder"

	"go.uber.org/zap"
)

const (
	bundlePrefix  = "spam_model_"
	bundleSuffix  = ".json"
	schemaVersion = 1
)

var (
	// ErrModelsDirMissing means the configured models directory does not
	// exist. A deployment problem, fatal at startup.
	ErrModelsDirMissing = errors.New("models directory does not exist")
	// ErrNoModelFound means the directory exists but holds no model bundle.
	ErrNoModelFound = errors.New("no model bundle found")
	// ErrCorruptArtifact means a bundle was found but failed validation.
	ErrCorruptArtifact = errors.New("corrupt model artifact")
	// ErrNotReady means no artifact has been loaded successfully.
	ErrNotReady = errors.New("model store is not ready")
)

// Artifact is the loaded (embedder, classifier) pair plus load metadata.
// It is immutable after Load returns; replacing the model requires a
// process restart.
type Artifact struct {
	Embedder   embedder.Embedder
	Classifier classifier.Classifier
	SourcePath string
	LoadedAt   time.Time
}

// bundle is the on-disk artifact schema.
type bundle struct {
	SchemaVersion int `json:"schema_version"`
	Embedder      struct {
		ModelFile string `json:"model_file"`
		VocabFile string `json:"vocab_file"`
		Dimension int    `json:"dimension"`
	} `json:"embedder"`
	Classifier struct {
		Labels  []string    `json:"labels"`
		Weights [][]float64 `json:"weights"`
		Bias    []float64   `json:"bias"`
	} `json:"classifier"`
}

// EmbedderFactory builds the embedder referenced by a bundle. Paths are
// already resolved relative to the models directory.
type EmbedderFactory func(modelPath, vocabPath string) (embedder.Embedder, error)

// Store resolves and holds the active model artifact. Load runs once at
// startup before the server accepts traffic; afterwards the artifact is
// read-only and requests only take the read lock.
type Store struct {
	dir         string
	newEmbedder EmbedderFactory
	logger      *zap.Logger

	mu       sync.RWMutex
	artifact *Artifact
}

// New creates a Store over the given models directory. The ONNX shared
// library path is threaded into the default embedder factory.
func New(dir, onnxLibrary string, logger *zap.Logger) *Store {
	return &Store{
		dir: dir,
		newEmbedder: func(modelPath, vocabPath string) (embedder.Embedder, error) {
			return embedder.NewONNX(modelPath, vocabPath, onnxLibrary)
		},
		logger: logger,
	}
}

// NewWithFactory creates a Store with a custom embedder factory. Used by
// tests to exercise load behavior without ONNX files.
func NewWithFactory(dir string, factory EmbedderFactory, logger *zap.Logger) *Store {
	return &Store{dir: dir, newEmbedder: factory, logger: logger}
}

// Load scans the models directory for spam_model_*.json bundles, picks the
// most recently modified one, validates it, and swaps in the artifact. On
// any failure the store keeps its previous state; a half-loaded artifact is
// never observable.
func (s *Store) Load() error {
	path, err := s.latestBundle()
	if err != nil {
		return err
	}
	s.logger.Info("Loading model bundle", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrCorruptArtifact, path, err)
	}

	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrCorruptArtifact, path, err)
	}
	if b.SchemaVersion != schemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrCorruptArtifact, b.SchemaVersion)
	}
	if b.Embedder.ModelFile == "" || b.Embedder.VocabFile == "" {
		return fmt.Errorf("%w: bundle does not reference an embedder", ErrCorruptArtifact)
	}

	cls, err := classifier.NewLinear(b.Classifier.Labels, b.Classifier.Weights, b.Classifier.Bias)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if b.Embedder.Dimension != cls.Dim() {
		return fmt.Errorf("%w: embedder dimension %d does not match classifier dimension %d",
			ErrCorruptArtifact, b.Embedder.Dimension, cls.Dim())
	}

	modelPath := filepath.Join(s.dir, b.Embedder.ModelFile)
	vocabPath := filepath.Join(s.dir, b.Embedder.VocabFile)
	for _, p := range []string{modelPath, vocabPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: missing embedder file %s", ErrCorruptArtifact, p)
		}
	}

	emb, err := s.newEmbedder(modelPath, vocabPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if emb.Dim() != cls.Dim() {
		_ = emb.Close()
		return fmt.Errorf("%w: embedder produces %d-dim vectors, classifier expects %d",
			ErrCorruptArtifact, emb.Dim(), cls.Dim())
	}

	artifact := &Artifact{
		Embedder:   emb,
		Classifier: cls,
		SourcePath: path,
		LoadedAt:   time.Now(),
	}

	s.mu.Lock()
	s.artifact = artifact
	s.mu.Unlock()

	s.logger.Info("Model bundle loaded",
		zap.String("path", path),
		zap.Strings("labels", cls.Labels()),
		zap.Int("dimension", cls.Dim()))
	return nil
}

// latestBundle returns the path of the newest bundle file by modification
// time. Ties break on lexicographically larger filename, so higher version
// suffixes win.
func (s *Store) latestBundle() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelsDirMissing, s.dir)
		}
		return "", fmt.Errorf("failed to read models directory: %w", err)
	}

	var bestName string
	var bestTime time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, bundlePrefix) || !strings.HasSuffix(name, bundleSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if bestName == "" || mod.After(bestTime) || (mod.Equal(bestTime) && name > bestName) {
			bestName = name
			bestTime = mod
		}
	}

	if bestName == "" {
		return "", fmt.Errorf("%w: no %s*%s file in %s", ErrNoModelFound, bundlePrefix, bundleSuffix, s.dir)
	}
	return filepath.Join(s.dir, bestName), nil
}

// Ready reports whether a usable artifact is held.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact != nil
}

// Artifact returns the loaded artifact, or ErrNotReady before a successful
// Load.
func (s *Store) Artifact() (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.artifact == nil {
		return nil, ErrNotReady
	}
	return s.artifact, nil
}

// Close releases the loaded embedder, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return nil
	}
	err := s.artifact.Embedder.Close()
	s.artifact = nil
	return err
}
