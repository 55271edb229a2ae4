// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package embedding

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// Cache persists computed vectors in a sqlite database keyed by content
// hash and model name. Chat history passages rarely change between turns,
// so warm turns skip the embeddings endpoint almost entirely.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (and if needed initializes) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	hash  TEXT NOT NULL,
	model TEXT NOT NULL,
	dim   INTEGER NOT NULL,
	vec   BLOB NOT NULL,
	PRIMARY KEY (hash, model)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get looks up a previously stored vector.
func (c *Cache) Get(model, text string) ([]float32, bool, error) {
	var dim int
	var blob []byte
	err := c.db.QueryRow(
		`SELECT dim, vec FROM vectors WHERE hash = ? AND model = ?`,
		contentHash(text), model,
	).Scan(&dim, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedding cache lookup failed: %w", err)
	}

	vec, err := decodeVector(blob, dim)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores a vector, replacing any previous entry for the same text and
// model.
func (c *Cache) Put(model, text string, vec []float32) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO vectors (hash, model, dim, vec) VALUES (?, ?, ?, ?)`,
		contentHash(text), model, len(vec), encodeVector(vec),
	)
	if err != nil {
		return fmt.Errorf("embedding cache store failed: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("embedding cache row corrupt: %d bytes for dim %d", len(blob), dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
