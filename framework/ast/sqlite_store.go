package ast

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the reference index in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens/creates the database at dbPath, creating its parent
// directory when needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// Writers are serialized on one connection.
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		language TEXT,
		category TEXT,
		line_count INTEGER,
		content_hash TEXT,
		symbol_count INTEGER,
		ref_count INTEGER,
		indexed_at TIMESTAMP,
		parser_version TEXT
	);
	CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT,
		container TEXT,
		start_off INTEGER,
		end_off INTEGER,
		sel_start INTEGER,
		sel_end INTEGER,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);
	CREATE TABLE IF NOT EXISTS refs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		ref_offset INTEGER,
		line INTEGER,
		col INTEGER,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
	CREATE INDEX IF NOT EXISTS idx_refs_name ON refs(name);
	CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const upsertFile = `
	INSERT INTO files (
		path, language, category, line_count, content_hash,
		symbol_count, ref_count, indexed_at, parser_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		language=excluded.language,
		category=excluded.category,
		line_count=excluded.line_count,
		content_hash=excluded.content_hash,
		symbol_count=excluded.symbol_count,
		ref_count=excluded.ref_count,
		indexed_at=excluded.indexed_at,
		parser_version=excluded.parser_version
	`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func saveFile(db execer, metadata *FileMetadata) (int64, error) {
	if metadata == nil {
		return 0, errors.New("metadata required")
	}
	_, err := db.Exec(upsertFile,
		metadata.Path,
		metadata.Language,
		metadata.Category,
		metadata.LineCount,
		metadata.ContentHash,
		metadata.SymbolCount,
		metadata.RefCount,
		metadata.IndexedAt,
		metadata.ParserVersion,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM files WHERE path = ?`, metadata.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveFile upserts metadata and fills in its ID.
func (s *SQLiteStore) SaveFile(metadata *FileMetadata) error {
	id, err := saveFile(s.db, metadata)
	if err != nil {
		return err
	}
	metadata.ID = id
	return nil
}

// ReplaceFile upserts metadata and replaces the file's symbols and refs.
func (s *SQLiteStore) ReplaceFile(metadata *FileMetadata, symbols []SymbolRecord, refs []RefRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := saveFile(tx, metadata)
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM refs WHERE file_id = ?`, id); err != nil {
		return err
	}
	if err := insertSymbols(tx, id, symbols); err != nil {
		return fmt.Errorf("insert symbols: %w", err)
	}
	if err := insertRefs(tx, id, refs); err != nil {
		return fmt.Errorf("insert refs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metadata.ID = id
	return nil
}

func insertSymbols(tx *sql.Tx, fileID int64, symbols []SymbolRecord) error {
	if len(symbols) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO symbols (
		file_id, name, kind, container, start_off, end_off, sel_start, sel_end
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sym := range symbols {
		if _, err := stmt.Exec(fileID, sym.Name, sym.Kind, sym.Container, sym.Start, sym.End, sym.SelStart, sym.SelEnd); err != nil {
			return err
		}
	}
	return nil
}

func insertRefs(tx *sql.Tx, fileID int64, refs []RefRecord) error {
	if len(refs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO refs (file_id, name, ref_offset, line, col) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ref := range refs {
		if _, err := stmt.Exec(fileID, ref.Name, ref.Offset, ref.Line, ref.Column); err != nil {
			return err
		}
	}
	return nil
}

const fileColumns = `id, path, language, category, line_count, content_hash,
	symbol_count, ref_count, indexed_at, parser_version`

// GetFileByPath returns ErrNotIndexed when path has no record.
func (s *SQLiteStore) GetFileByPath(path string) (*FileMetadata, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	meta, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, path)
	}
	return meta, err
}

// ListFiles lists indexed files, optionally restricted to one language.
func (s *SQLiteStore) ListFiles(language string) ([]*FileMetadata, error) {
	var rows *sql.Rows
	var err error
	if language == "" {
		rows, err = s.db.Query(`SELECT ` + fileColumns + ` FROM files ORDER BY path`)
	} else {
		rows, err = s.db.Query(`SELECT `+fileColumns+` FROM files WHERE language = ? ORDER BY path`, language)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]*FileMetadata, 0)
	for rows.Next() {
		meta, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// DeleteFile removes path and everything recorded for it.
func (s *SQLiteStore) DeleteFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, query := range []string{
		`DELETE FROM symbols WHERE file_id IN (SELECT id FROM files WHERE path = ?)`,
		`DELETE FROM refs WHERE file_id IN (SELECT id FROM files WHERE path = ?)`,
		`DELETE FROM files WHERE path = ?`,
	} {
		if _, err := tx.Exec(query, path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SymbolAt returns ErrNotIndexed when no symbol's selection contains offset.
func (s *SQLiteStore) SymbolAt(path string, offset int) (*SymbolRecord, error) {
	row := s.db.QueryRow(`
	SELECT f.path, s.name, s.kind, s.container, s.start_off, s.end_off, s.sel_start, s.sel_end
	FROM symbols s JOIN files f ON f.id = s.file_id
	WHERE f.path = ? AND s.sel_start <= ? AND ? < s.sel_end
	ORDER BY (s.sel_end - s.sel_start), (s.end_off - s.start_off)
	LIMIT 1`, path, offset, offset)
	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s:%d", ErrNotIndexed, path, offset)
	}
	return sym, err
}

// SymbolsInFile lists the symbols of path in source order.
func (s *SQLiteStore) SymbolsInFile(path string) ([]SymbolRecord, error) {
	rows, err := s.db.Query(`
	SELECT f.path, s.name, s.kind, s.container, s.start_off, s.end_off, s.sel_start, s.sel_end
	FROM symbols s JOIN files f ON f.id = s.file_id
	WHERE f.path = ?
	ORDER BY s.start_off, s.sel_start`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SymbolRecord
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sym)
	}
	return out, rows.Err()
}

// CountReferences counts identifier uses of name across the index.
func (s *SQLiteStore) CountReferences(name string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM refs WHERE name = ?`, name).Scan(&count)
	return count, err
}

// ReferencesTo lists identifier uses of name ordered by path and offset.
func (s *SQLiteStore) ReferencesTo(name string) ([]RefRecord, error) {
	rows, err := s.db.Query(`
	SELECT f.path, r.name, r.ref_offset, r.line, r.col
	FROM refs r JOIN files f ON f.id = r.file_id
	WHERE r.name = ?
	ORDER BY f.path, r.ref_offset`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RefRecord
	for rows.Next() {
		var ref RefRecord
		if err := rows.Scan(&ref.Path, &ref.Name, &ref.Offset, &ref.Line, &ref.Column); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Vacuum performs database maintenance.
func (s *SQLiteStore) Vacuum() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}

// Stats aggregates counts.
func (s *SQLiteStore) Stats() (*IndexStats, error) {
	stats := &IndexStats{
		FilesByLanguage: make(map[string]int),
		SymbolsByKind:   make(map[SymbolKind]int),
	}
	for query, dest := range map[string]*int{
		`SELECT COUNT(*) FROM files`:   &stats.TotalFiles,
		`SELECT COUNT(*) FROM symbols`: &stats.TotalSymbols,
		`SELECT COUNT(*) FROM refs`:    &stats.TotalRefs,
	} {
		if err := s.db.QueryRow(query).Scan(dest); err != nil {
			return nil, err
		}
	}
	rows, err := s.db.Query(`SELECT language, COUNT(*) FROM files GROUP BY language`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.FilesByLanguage[lang] = count
	}
	rows.Close()
	rows, err = s.db.Query(`SELECT kind, COUNT(*) FROM symbols GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var kind SymbolKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.SymbolsByKind[kind] = count
	}
	rows.Close()
	var pageCount, pageSize int64
	s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount)
	s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize)
	stats.DatabaseSize = pageCount * pageSize
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*FileMetadata, error) {
	meta := &FileMetadata{}
	err := row.Scan(
		&meta.ID,
		&meta.Path,
		&meta.Language,
		&meta.Category,
		&meta.LineCount,
		&meta.ContentHash,
		&meta.SymbolCount,
		&meta.RefCount,
		&meta.IndexedAt,
		&meta.ParserVersion,
	)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func scanSymbol(row rowScanner) (*SymbolRecord, error) {
	sym := &SymbolRecord{}
	var container sql.NullString
	err := row.Scan(&sym.Path, &sym.Name, &sym.Kind, &container, &sym.Start, &sym.End, &sym.SelStart, &sym.SelEnd)
	if err != nil {
		return nil, err
	}
	sym.Container = container.String
	return sym, nil
}
