package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// KnowledgeChunk is a passage in the knowledge base searched by the
// research persona.
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Source    string    `json:"source,omitempty"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Rank      float64   `json:"rank,omitempty"` // FTS5 rank score (search results only)
}

// KnowledgeStore manages knowledge chunks with full-text search via SQLite FTS5.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a knowledge store using the given database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Add inserts or updates a chunk.
func (k *KnowledgeStore) Add(ctx context.Context, chunk KnowledgeChunk) (*KnowledgeChunk, error) {
	if strings.TrimSpace(chunk.Content) == "" {
		return nil, fmt.Errorf("chunk content is empty")
	}
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.Category == "" {
		chunk.Category = "general"
	}

	now := time.Now().UTC()
	chunk.UpdatedAt = now

	var created string
	err := k.db.sql.QueryRowContext(ctx,
		`INSERT INTO knowledge_chunks (id, title, source, category, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   source = excluded.source,
		   category = excluded.category,
		   content = excluded.content,
		   updated_at = excluded.updated_at
		 RETURNING created_at`,
		chunk.ID, chunk.Title, chunk.Source, chunk.Category, chunk.Content,
		now.Format(timeFormat), now.Format(timeFormat),
	).Scan(&created)
	if err != nil {
		return nil, fmt.Errorf("storing chunk: %w", err)
	}
	chunk.CreatedAt = parseTime(created)
	return &chunk, nil
}

// Search finds chunks matching any word of the query, best match first.
// Limit of 0 defaults to 5.
func (k *KnowledgeStore) Search(ctx context.Context, query string, limit int) ([]KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT kc.id, kc.title, kc.source, kc.category, kc.content,
		        kc.created_at, kc.updated_at, rank
		 FROM knowledge_fts
		 JOIN knowledge_chunks kc ON kc.rowid = knowledge_fts.rowid
		 WHERE knowledge_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// List returns chunks, newest first, optionally filtered by category.
func (k *KnowledgeStore) List(ctx context.Context, category string, limit int) ([]KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = k.db.sql.QueryContext(ctx,
			`SELECT id, title, source, category, content, created_at, updated_at, 0
			 FROM knowledge_chunks WHERE category = ?
			 ORDER BY updated_at DESC LIMIT ?`,
			category, limit,
		)
	} else {
		rows, err = k.db.sql.QueryContext(ctx,
			`SELECT id, title, source, category, content, created_at, updated_at, 0
			 FROM knowledge_chunks
			 ORDER BY updated_at DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing knowledge: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Delete removes a chunk by ID and reports whether it existed.
func (k *KnowledgeStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := k.db.sql.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of stored chunks.
func (k *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var n int
	err := k.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&n)
	return n, err
}

func scanChunks(rows *sql.Rows) ([]KnowledgeChunk, error) {
	var chunks []KnowledgeChunk
	for rows.Next() {
		var chunk KnowledgeChunk
		var createdAt, updatedAt string
		if err := rows.Scan(
			&chunk.ID, &chunk.Title, &chunk.Source, &chunk.Category, &chunk.Content,
			&createdAt, &updatedAt, &chunk.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.CreatedAt = parseTime(createdAt)
		chunk.UpdatedAt = parseTime(updatedAt)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ftsQuery turns free text into an FTS5 expression that matches any of its
// words, so punctuation in user input never reaches the MATCH parser.
func ftsQuery(text string) string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// SplitParagraphs breaks a document into chunks of at most maxLen bytes,
// keeping paragraphs whole where possible.
func SplitParagraphs(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 1500
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > maxLen {
			flush()
		}
		for len(para) > maxLen {
			cut := strings.LastIndex(para[:maxLen], " ")
			if cut <= 0 {
				cut = maxLen
				for cut > 0 && !utf8.RuneStart(para[cut]) {
					cut--
				}
				if cut == 0 {
					_, cut = utf8.DecodeRuneInString(para)
				}
			}
			if cur.Len() > 0 {
				flush()
			}
			chunks = append(chunks, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}
