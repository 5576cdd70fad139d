package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/CookFlow/internal/models"
)

const corpusSchema = `
CREATE TABLE IF NOT EXISTS corpus_documents (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_corpus_documents_category ON corpus_documents(category);
`

// candidateLimit caps how many rows one search pulls out of SQLite before
// ranking in memory.
const candidateLimit = 200

// SQLiteIndex stores corpus documents in SQLite. Candidate rows are gathered
// with one LIKE condition per query keyword and ranked in memory.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if needed) a SQLite-backed corpus index at
// the given DSN. The parent directory is created when missing.
func NewSQLiteIndex(dsn string) (*SQLiteIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("corpus index DSN not set")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create corpus index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus index: %w", err)
	}
	// Single connection keeps in-memory DSNs coherent across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("corpus index ping failed: %w", err)
	}
	if _, err := db.Exec(corpusSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply corpus index schema: %w", err)
	}

	slog.Debug("SQLiteIndex: corpus index opened", "dsn", dsn)
	return &SQLiteIndex{db: db}, nil
}

// Seed inserts or replaces the given documents. Seeding the same corpus twice
// leaves the index unchanged.
func (s *SQLiteIndex) Seed(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin corpus seed transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO corpus_documents (id, category, title, body, tags) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare corpus insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID, string(doc.Category), doc.Title, doc.Text, strings.Join(doc.Tags, " ")); err != nil {
			return fmt.Errorf("failed to insert corpus document %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corpus seed: %w", err)
	}

	slog.Debug("SQLiteIndex.Seed: corpus seeded", "documents", len(docs))
	return nil
}

// Search implements Index.
func (s *SQLiteIndex) Search(ctx context.Context, query string, category models.FactCategory, k int) ([]models.RetrievedFact, error) {
	if k <= 0 {
		k = 10
	}
	keywords := tokenizeQuery(query)
	if len(keywords) == 0 {
		return []models.RetrievedFact{}, nil
	}

	conditions := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	args = append(args, string(category))
	for _, kw := range keywords {
		conditions = append(conditions, "LOWER(title || ' ' || body || ' ' || tags) LIKE ?")
		args = append(args, "%"+kw+"%")
	}

	sqlQuery := fmt.Sprintf(
		"SELECT id, category, title, body, tags FROM corpus_documents WHERE category = ? AND (%s) LIMIT %d",
		strings.Join(conditions, " OR "), candidateLimit,
	)
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus search failed: %w", err)
	}
	defer rows.Close()

	var candidates []Document
	for rows.Next() {
		var doc Document
		var cat, tags string
		if err := rows.Scan(&doc.ID, &cat, &doc.Title, &doc.Text, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan corpus row: %w", err)
		}
		doc.Category = models.FactCategory(cat)
		doc.Tags = strings.Fields(tags)
		candidates = append(candidates, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus row iteration failed: %w", err)
	}

	return rankDocuments(keywords, candidates, k), nil
}

// Close implements Index.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
