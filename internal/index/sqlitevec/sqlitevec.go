// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package sqlitevec provides a sqlite-vec backed Index for installations
// whose document libraries outgrow the brute-force JSON file cache.
package sqlitevec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/index"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

// Index implements index.Index backed by SQLite with the vec0 virtual table.
// A companion table keeps content hashes and insertion sequence so staleness
// detection and stable tie-breaking match the file backend.
type Index struct {
	db       *sql.DB
	embedder embed.Embedder
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// vec0 virtual table and companion entries table.
func New(embedder embed.Embedder, dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db, embedder.Dimension()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}

	return &Index{db: db, embedder: embedder}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const entriesDDL = `
CREATE TABLE IF NOT EXISTS index_entries (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	id   TEXT UNIQUE NOT NULL,
	hash TEXT NOT NULL
)`
	if _, err := db.Exec(entriesDDL); err != nil {
		return fmt.Errorf("creating index_entries table: %w", err)
	}

	return nil
}

// Upsert embeds text and stores the vector unless the stored content hash
// already matches.
func (x *Index) Upsert(ctx context.Context, id, text string) error {
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	var stored string
	err := x.db.QueryRowContext(ctx, `SELECT hash FROM index_entries WHERE id = ?`, id).Scan(&stored)
	if err == nil && stored == hash {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("checking content hash %s: %w", id, err)
	}

	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", id, err)
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting existing vector %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("inserting vector %s: %w", id, err)
	}

	const entryQ = `INSERT INTO index_entries(id, hash) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET hash = excluded.hash`
	if _, err := tx.ExecContext(ctx, entryQ, id, hash); err != nil {
		return fmt.Errorf("upserting index entry %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector upsert: %w", err)
	}
	return nil
}

// Search performs a k-nearest-neighbor search and converts vec0 L2 distance
// to cosine similarity (vectors are stored L2-normalized, so cos = 1 - d²/2).
// A zero query vector has no direction and scores 0 against everything, so
// it short-circuits to an empty result before the distance conversion.
func (x *Index) Search(ctx context.Context, queryText string, topK int, minSimilarity float64) ([]index.Result, error) {
	if x.Len() == 0 {
		return []index.Result{}, nil
	}
	if topK <= 0 {
		topK = 10
	}

	query, err := x.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if isZero(query) {
		return []index.Result{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT v.id, v.distance
FROM vectors v
JOIN index_entries e ON e.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance, e.seq`

	rows, err := x.db.QueryContext(ctx, q, blob, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []index.Result
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}

		score := 1.0 - distance*distance/2.0
		if score < minSimilarity {
			continue
		}
		results = append(results, index.Result{ID: id, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}

	if results == nil {
		results = []index.Result{}
	}
	return results, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// Remove deletes the vector and entry row for id.
func (x *Index) Remove(ctx context.Context, id string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting vector %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting index entry %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector delete: %w", err)
	}
	return nil
}

// Len reports the number of stored entries.
func (x *Index) Len() int {
	var n int
	if err := x.db.QueryRow(`SELECT COUNT(*) FROM index_entries`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}
