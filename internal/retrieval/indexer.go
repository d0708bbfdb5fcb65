package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/contractflow/internal/document"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/parser"
	"github.com/raphaelgruber/contractflow/internal/storage"
)

// ErrNoPolicies is returned when the policy directory holds no usable documents.
var ErrNoPolicies = errors.New("no policy documents found")

const embedBatchSize = 32

// BatchEmbedder embeds many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer loads policy documents, chunks and embeds them into the store.
type Indexer struct {
	embedder BatchEmbedder
	store    storage.PolicyStore
	chunking parser.ChunkConfig
	logger   *slog.Logger
}

// NewIndexer creates an indexer with the default chunking.
func NewIndexer(embedder BatchEmbedder, store storage.PolicyStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		chunking: parser.DefaultChunkConfig(),
		logger:   logger,
	}
}

// BuildIndex indexes every .txt, .md and .pdf file under dir and returns the
// number of chunks stored. With reset the existing index is cleared first.
func (ix *Indexer) BuildIndex(ctx context.Context, dir string, reset bool) (int, error) {
	docs, err := LoadPolicies(dir)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoPolicies, dir)
	}

	var chunks []models.PolicyChunk
	for _, doc := range docs {
		parts, err := parser.SplitPolicy(doc, ix.chunking)
		if err != nil {
			return 0, fmt.Errorf("split %s: %w", doc.Source, err)
		}
		for _, p := range parts {
			chunks = append(chunks, models.PolicyChunk{
				ID:       ChunkID(doc.Source, p.Position),
				Source:   doc.Source,
				Title:    doc.Title,
				Position: p.Position,
				Content:  p.Content,
			})
		}
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed policy chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embed policy chunks: got %d vectors for %d texts", len(vectors), len(texts))
		}
		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}

	if reset {
		if err := ix.store.ResetPolicyChunks(ctx); err != nil {
			return 0, err
		}
	}
	if err := ix.store.UpsertPolicyChunks(ctx, chunks); err != nil {
		return 0, err
	}

	ix.logger.Info("indexed policy documents",
		"event", "policy_indexed",
		"documents", len(docs),
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// LoadPolicies reads every supported policy file under dir, recursively.
// Files without text are skipped.
func LoadPolicies(dir string) ([]*parser.PolicyDoc, error) {
	var docs []*parser.PolicyDoc
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var content string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			content = strings.ToValidUTF8(string(raw), "")
		case ".pdf":
			text, err := document.PDFText(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			content = document.NormalizeText(text)
		default:
			return nil
		}

		if strings.TrimSpace(content) == "" {
			return nil
		}
		docs = append(docs, parser.ParsePolicy(path, content))
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, fmt.Errorf("scan policy directory: %w", err)
	}
	return docs, nil
}

// ChunkID derives a stable chunk ID so re-indexing overwrites in place.
func ChunkID(source string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(position))).String()
}
