// Package ingest feeds local documents into the passage index: it walks the
// documents directory, extracts text, chunks it, and upserts one indexed
// document per passage.
//
// Ingestion is the offline half of retrieval; the serve path never writes to
// the index.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/siteguide/siteguide/internal/browser"
	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/knowledge"
	"github.com/siteguide/siteguide/internal/log"
)

// Adder is the single store operation ingestion needs. knowledge.Store
// satisfies it.
type Adder interface {
	Add(ctx context.Context, doc knowledge.Document) error
}

// supportedExtensions are the file types ingestion can extract text from.
// PDFs land in the documents directory via upload but are skipped here until
// a text extraction path exists for them.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// Result summarizes one ingestion run.
type Result struct {
	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
	Passages      int
	Duration      time.Duration
}

// Ingester chunks documents into the index.
type Ingester struct {
	store    Adder
	chunkCfg chunk.Config
	logger   log.Logger
}

// New creates an Ingester.
func New(store Adder, chunkCfg chunk.Config, logger log.Logger) (*Ingester, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Ingester{store: store, chunkCfg: chunkCfg, logger: logger}, nil
}

// Directory ingests every supported file under dir. Per-file failures are
// counted and walked past; only a failure to open the directory aborts the
// run. Files matched by the directory's .gitignore are skipped.
func (ing *Ingester) Directory(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path: %w", err)
	}

	// Reads go through os.Root so symlinks cannot escape the documents
	// directory.
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, fmt.Errorf("opening documents directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	var gitIgnore *ignore.GitIgnore
	gitignorePath := filepath.Join(absDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		gitIgnore, err = ignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			// A malformed .gitignore disables filtering, not the run.
			ing.logger.Warn("ignoring malformed .gitignore", "path", gitignorePath, "error", err)
			gitIgnore = nil
		}
	}

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			result.FilesFailed++
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			result.FilesSkipped++
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			result.FilesSkipped++
			return nil
		}

		content, err := root.ReadFile(relPath)
		if err != nil {
			ing.logger.Warn("reading file failed", "path", relPath, "error", err)
			result.FilesFailed++
			return nil
		}

		n, err := ing.ingestFile(ctx, relPath, ext, content)
		if err != nil {
			ing.logger.Warn("ingesting file failed", "path", relPath, "error", err)
			result.FilesFailed++
			return nil
		}

		result.FilesIngested++
		result.Passages += n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking documents directory: %w", err)
	}

	result.Duration = time.Since(start)
	ing.logger.Info("ingestion finished",
		"dir", absDir,
		"files", result.FilesIngested,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"passages", result.Passages,
	)
	return result, nil
}

// ingestFile extracts text, chunks it, and upserts each passage. Returns how
// many passages were stored.
func (ing *Ingester) ingestFile(ctx context.Context, relPath, ext string, content []byte) (int, error) {
	text := string(content)
	if ext == ".html" || ext == ".htm" {
		text = browser.ExtractContent(text, &url.URL{Path: relPath}, browser.DefaultMinSelectorTextLen)
	}

	passages, err := chunk.Split(text, relPath, chunk.KindDocument, ing.chunkCfg)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, p := range passages {
		doc := knowledge.Document{
			ID:      knowledge.DocumentID(knowledge.SourceTypeDocument, relPath, p.Offset),
			Content: p.Content,
			Metadata: map[string]string{
				"source_type":  knowledge.SourceTypeDocument,
				"source":       relPath,
				"chunk_offset": strconv.Itoa(p.Offset),
				"file_ext":     ext,
				"indexed_at":   now.Format(time.RFC3339),
			},
			CreatedAt: now,
		}
		if err := ing.store.Add(ctx, doc); err != nil {
			return 0, fmt.Errorf("storing passage at offset %d: %w", p.Offset, err)
		}
	}
	ing.logger.Debug("ingested file", "path", relPath, "passages", len(passages))
	return len(passages), nil
}
