package ast

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lexcodex/refhints/framework/editor"
)

const parserVersion = "refhints-1"

// IndexConfig configures the IndexManager.
type IndexConfig struct {
	WorkspacePath   string
	ParallelWorkers int
	// IgnorePatterns are doublestar globs matched against slash-separated
	// paths relative to the workspace.
	IgnorePatterns []string
	Logger         *log.Logger
}

// IndexReport summarizes one workspace pass.
type IndexReport struct {
	Scanned  int
	Indexed  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// IndexManager orchestrates parsing and persistence.
type IndexManager struct {
	store            IndexStore
	parserRegistry   *ParserRegistry
	languageDetector *LanguageDetector
	logger           *log.Logger
	config           IndexConfig

	mu       sync.Mutex
	indexing map[string]bool
	// snapMu serializes IndexSnapshot so concurrent reference queries on one
	// buffer parse it once.
	snapMu sync.Mutex
}

// NewIndexManager builds a manager with the default parsers.
func NewIndexManager(store IndexStore, config IndexConfig) *IndexManager {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &IndexManager{
		store:            store,
		parserRegistry:   DefaultParserRegistry(),
		languageDetector: NewLanguageDetector(),
		logger:           logger,
		config:           config,
		indexing:         make(map[string]bool),
	}
}

// RegisterParser makes an additional parser available.
func (im *IndexManager) RegisterParser(parser Parser) {
	if parser == nil {
		return
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.parserRegistry.Register(parser)
}

func (im *IndexManager) parserFor(language string) (Parser, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.parserRegistry.GetParser(language)
}

// Normalize returns the absolute, cleaned form of path used as the index key.
func (im *IndexManager) Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// IndexFile parses and stores the file at path. It reports whether the
// index changed; unchanged content is skipped by hash.
func (im *IndexManager) IndexFile(path string) (bool, error) {
	path = im.Normalize(path)
	im.mu.Lock()
	if im.indexing[path] {
		im.mu.Unlock()
		return false, fmt.Errorf("index already running for %s", path)
	}
	im.indexing[path] = true
	im.mu.Unlock()
	defer func() {
		im.mu.Lock()
		delete(im.indexing, path)
		im.mu.Unlock()
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return im.indexContent(path, im.languageDetector.Detect(path), string(content))
}

// IndexSnapshot indexes the unsaved contents of a buffer in place of the
// file on disk.
func (im *IndexManager) IndexSnapshot(snap editor.Snapshot) error {
	path := im.Normalize(snap.Path())
	language := snap.LanguageID()
	if language == "" {
		language = im.languageDetector.Detect(path)
	}
	im.snapMu.Lock()
	defer im.snapMu.Unlock()
	_, err := im.indexContent(path, language, snap.Text())
	return err
}

func (im *IndexManager) indexContent(path, language, content string) (bool, error) {
	parser, ok := im.parserFor(language)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	contentHash := HashContent(content)
	if existing, err := im.store.GetFileByPath(path); err == nil && existing.ContentHash == contentHash {
		return false, nil
	}
	result, err := parser.Parse(content, path)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	snap := editor.NewSnapshot(path, language, content)
	symbols := flattenSymbols(path, result.Symbols)
	refs := make([]RefRecord, 0, len(result.Identifiers))
	for _, id := range result.Identifiers {
		pt := snap.OffsetToPoint(id.Offset)
		refs = append(refs, RefRecord{Path: path, Name: id.Name, Offset: id.Offset, Line: pt.Line, Column: pt.Column})
	}
	meta := &FileMetadata{
		Path:          path,
		Language:      language,
		Category:      im.languageDetector.DetectCategory(language),
		LineCount:     snap.LineCount(),
		ContentHash:   contentHash,
		SymbolCount:   len(symbols),
		RefCount:      len(refs),
		IndexedAt:     time.Now().UTC(),
		ParserVersion: parserVersion,
	}
	if err := im.store.ReplaceFile(meta, symbols, refs); err != nil {
		return false, fmt.Errorf("store %s: %w", path, err)
	}
	return true, nil
}

// flattenSymbols walks the tree with an explicit stack, recording each
// symbol's direct container.
func flattenSymbols(path string, roots []Symbol) []SymbolRecord {
	type item struct {
		sym       *Symbol
		container string
	}
	var out []SymbolRecord
	stack := make([]item, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, item{sym: &roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sym := top.sym
		out = append(out, SymbolRecord{
			Path:      path,
			Name:      sym.Name,
			Kind:      sym.Kind,
			Container: top.container,
			Start:     sym.Range.Start,
			End:       sym.Range.End,
			SelStart:  sym.Selection.Start,
			SelEnd:    sym.Selection.End,
		})
		for i := len(sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{sym: &sym.Children[i], container: sym.Name})
		}
	}
	return out
}

// IndexWorkspace walks the workspace and indexes every file a parser
// supports, skipping ignored paths and unchanged content.
func (im *IndexManager) IndexWorkspace(ctx context.Context) (*IndexReport, error) {
	started := time.Now()
	root := im.config.WorkspacePath
	if root == "" {
		root = "."
	}
	root = im.Normalize(root)
	report := &IndexReport{}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if im.shouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if im.shouldIgnore(rel) {
			return nil
		}
		if _, ok := im.parserFor(im.languageDetector.Detect(path)); !ok {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Scanned = len(files)
	if im.config.ParallelWorkers > 1 {
		err = im.indexFilesParallel(ctx, files, report)
	} else {
		err = im.indexFilesSequential(ctx, files, report)
	}
	report.Duration = time.Since(started)
	return report, err
}

func (im *IndexManager) shouldIgnore(rel string) bool {
	for _, pattern := range im.config.IgnorePatterns {
		match, err := doublestar.Match(pattern, rel)
		if err == nil && match {
			return true
		}
	}
	return false
}

func (im *IndexManager) record(report *IndexReport, path string, changed bool, err error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	switch {
	case err != nil:
		report.Failed++
		im.logger.Printf("index warning: %s: %v", path, err)
	case changed:
		report.Indexed++
	default:
		report.Skipped++
	}
}

func (im *IndexManager) indexFilesSequential(ctx context.Context, files []string, report *IndexReport) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed, err := im.IndexFile(file)
		im.record(report, file, changed, err)
	}
	return nil
}

func (im *IndexManager) indexFilesParallel(ctx context.Context, files []string, report *IndexReport) error {
	workerCount := im.config.ParallelWorkers
	var wg sync.WaitGroup
	fileCh := make(chan string)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileCh {
				changed, err := im.IndexFile(file)
				im.record(report, file, changed, err)
			}
		}()
	}
	var err error
feed:
	for _, file := range files {
		select {
		case fileCh <- file:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(fileCh)
	wg.Wait()
	return err
}

// RemoveFile drops path from the index.
func (im *IndexManager) RemoveFile(path string) error {
	return im.store.DeleteFile(im.Normalize(path))
}

// Stats proxies store.Stats for callers.
func (im *IndexManager) Stats() (*IndexStats, error) {
	return im.store.Stats()
}

// LastIndexedAt fetches the timestamp recorded for a path, zero if the
// path was never indexed.
func (im *IndexManager) LastIndexedAt(path string) (time.Time, error) {
	file, err := im.store.GetFileByPath(im.Normalize(path))
	if errors.Is(err, ErrNotIndexed) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return file.IndexedAt, nil
}

// Store exposes the underlying IndexStore for advanced queries.
func (im *IndexManager) Store() IndexStore {
	return im.store
}
