package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"go.uber.org/zap"
)

// Indexer loads procedure documents, chunks them, and publishes a fresh snapshot.
// Reloads are serialized; readers keep using the previous snapshot until the new
// one is published.
type Indexer struct {
	store       *search.SnapshotStore
	analyzer    *keyword.Analyzer
	chunker     *Chunker
	extractor   *extract.Extractor
	directories []string
	extensions  []string
	recursive   bool
	logger      *zap.Logger

	mu      sync.Mutex
	version uint64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for load and reload events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that publishes to store.
// extractor may be nil; when nil, files are read as plain text.
func NewIndexer(
	store *search.SnapshotStore,
	analyzer *keyword.Analyzer,
	cfg *config.Config,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:       store,
		analyzer:    analyzer,
		chunker:     NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		extractor:   extractor,
		directories: cfg.Documents.Directories,
		extensions:  cfg.Documents.Extensions,
		recursive:   cfg.Documents.RecursiveOrDefault(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Directories returns the configured document directories.
func (idx *Indexer) Directories() []string { return idx.directories }

// Chunker returns the chunker used for documents.
func (idx *Indexer) Chunker() *Chunker { return idx.chunker }

// Allowed reports whether path has one of the configured extensions.
func (idx *Indexer) Allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return len(idx.extensions) == 0 || extensionAllowed(ext, idx.extensions)
}

// Reload reads every configured directory, builds a new snapshot, and publishes it.
// On error the current snapshot is left untouched.
func (idx *Indexer) Reload(ctx context.Context) (*search.Snapshot, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()
	var docs []models.Document
	for _, dir := range idx.directories {
		loaded, err := idx.LoadDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := idx.publish(docs)
	idx.logger.Info("documents reloaded",
		zap.Uint64("version", snap.Version),
		zap.Int("documents", snap.DocumentCount()),
		zap.Int("chunks", snap.ChunkCount()),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// LoadDocuments chunks docs and publishes them as the new snapshot.
func (idx *Indexer) LoadDocuments(docs []models.Document) *search.Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.publish(docs)
}

func (idx *Indexer) publish(docs []models.Document) *search.Snapshot {
	var chunks []models.Chunk
	for i := range docs {
		chunks = append(chunks, idx.chunker.Chunk(&docs[i])...)
	}
	idx.version++
	snap := search.NewSnapshot(idx.version, docs, chunks, idx.analyzer)
	idx.store.Publish(snap)
	return snap
}

// LoadFile reads and extracts a single document. The document ID is derived from the
// absolute path so the same file keeps its ID across reloads.
func (idx *Indexer) LoadFile(path string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	text, err := idx.extractContent(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return &models.Document{
		ID:         fileid.DocumentID(absPath),
		Title:      filepath.Base(absPath),
		RawText:    text,
		Path:       absPath,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// LoadDirectory loads every allowed regular file under dir, sorted by path.
// Files that fail extraction are logged and skipped.
func (idx *Indexer) LoadDirectory(ctx context.Context, dir string) ([]models.Document, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!idx.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !idx.Allowed(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absDir, err)
	}
	sort.Strings(paths)

	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := idx.LoadFile(path)
		if err != nil {
			idx.logger.Warn("skipping document", zap.String("path", path), zap.Error(err))
			continue
		}
		idx.logger.Debug("document loaded", zap.String("path", path), zap.String("doc_id", doc.ID))
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
