// Package vectorindex is the kNN lookup behind the Speaker Identity
// Engine's cross-file matching. The index is a Postgres table (see
// internal/database's embeddings table) with a SQL pre-filter by
// document_type/user_id and cosine similarity computed in Go over the
// filtered rows, queried through the same pool the rest of
// internal/database uses.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentType discriminates the two embedding kinds sharing the table.
type DocumentType string

const (
	DocSpeakerEmbedding DocumentType = "speaker_embedding"
	DocProfileEmbedding DocumentType = "profile_embedding"
)

// Document is one stored vector, identified by (DocumentType, DocumentID).
type Document struct {
	DocumentType DocumentType
	DocumentID   int64
	UserID       int64
	Vector       []float64
}

// Match is a kNN hit with its similarity score.
type Match struct {
	Document
	Score float64
}

// Index is the interface internal/speaker depends on, so tests can swap
// in an in-memory fake without a database.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Get(ctx context.Context, typ DocumentType, documentID int64) (*Document, error)
	Probe(ctx context.Context, typ DocumentType, userID int64) (int, error)
	KNN(ctx context.Context, typ DocumentType, userID int64, query []float64, k int) ([]Match, error)
}

// PGIndex implements Index on the embeddings table.
type PGIndex struct {
	pool *pgxpool.Pool
}

func NewPGIndex(pool *pgxpool.Pool) *PGIndex {
	return &PGIndex{pool: pool}
}

// Upsert stores or replaces a document's vector.
func (idx *PGIndex) Upsert(ctx context.Context, doc Document) error {
	_, err := idx.pool.Exec(ctx, `
		INSERT INTO embeddings (document_type, document_id, user_id, vector, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_type, document_id)
		DO UPDATE SET vector = EXCLUDED.vector, dim = EXCLUDED.dim, user_id = EXCLUDED.user_id`,
		string(doc.DocumentType), doc.DocumentID, doc.UserID, doc.Vector, len(doc.Vector))
	return err
}

// Get fetches a single document's vector.
func (idx *PGIndex) Get(ctx context.Context, typ DocumentType, documentID int64) (*Document, error) {
	var d Document
	d.DocumentType = typ
	d.DocumentID = documentID
	err := idx.pool.QueryRow(ctx,
		`SELECT user_id, vector FROM embeddings WHERE document_type = $1 AND document_id = $2`,
		string(typ), documentID,
	).Scan(&d.UserID, &d.Vector)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Probe returns the number of candidate documents of a given type for a
// user. The speaker matching pipeline calls this before running a kNN
// query — if Probe returns 0 there are no known speakers to match
// against yet, and the caller skips the kNN query rather than asking
// Postgres to rank zero rows.
func (idx *PGIndex) Probe(ctx context.Context, typ DocumentType, userID int64) (int, error) {
	var n int
	err := idx.pool.QueryRow(ctx,
		`SELECT count(*) FROM embeddings WHERE document_type = $1 AND user_id = $2`,
		string(typ), userID,
	).Scan(&n)
	return n, err
}

// KNN returns the k closest documents to query by cosine similarity,
// highest score first. The SQL layer only filters by type/user; ranking
// is done in Go since there's no vector extension to push it down to.
func (idx *PGIndex) KNN(ctx context.Context, typ DocumentType, userID int64, query []float64, k int) ([]Match, error) {
	rows, err := idx.pool.Query(ctx,
		`SELECT document_id, vector FROM embeddings WHERE document_type = $1 AND user_id = $2`,
		string(typ), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Document
	for rows.Next() {
		var d Document
		d.DocumentType = typ
		d.UserID = userID
		if err := rows.Scan(&d.DocumentID, &d.Vector); err != nil {
			return nil, err
		}
		candidates = append(candidates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return TopK(candidates, query, k)
}

// TopK ranks candidates against query by cosine similarity and returns
// the top k, highest score first (k <= 0 returns every candidate).
// Exported so ranking can be exercised without a database.
func TopK(candidates []Document, query []float64, k int) ([]Match, error) {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", c.DocumentID, err)
		}
		matches = append(matches, Match{Document: c, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Returns an error if the vectors have mismatched dimensions or
// either is a zero vector (undefined angle).
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
