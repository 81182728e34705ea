package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"haventory/internal/apperr"
	"haventory/internal/repo"
)

// SchemaVersion — текущая версия формата снимка.
const SchemaVersion = 1

// Record is what a sink persists: the encoded payload and its checksum.
type Record struct {
	Payload  []byte
	Checksum string
}

type payload struct {
	SchemaVersion int `json:"schema_version"`
	repo.State
}

// Checksum returns the hex blake2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Encode serialises a state into a record at the current schema version.
func Encode(st repo.State) (Record, error) {
	b, err := json.Marshal(payload{SchemaVersion: SchemaVersion, State: st})
	if err != nil {
		return Record{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Record{Payload: b, Checksum: Checksum(b)}, nil
}

// Decode verifies, migrates and decodes a record.
func Decode(rec Record) (repo.State, error) {
	if rec.Checksum != "" && rec.Checksum != Checksum(rec.Payload) {
		return repo.State{}, apperr.Storage(fmt.Errorf("snapshot checksum mismatch"))
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Payload, &doc); err != nil {
		return repo.State{}, apperr.Storage(fmt.Errorf("decode snapshot: %w", err))
	}
	doc, err := Migrate(doc)
	if err != nil {
		return repo.State{}, apperr.Storage(err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return repo.State{}, apperr.Storage(fmt.Errorf("re-encode snapshot: %w", err))
	}
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return repo.State{}, apperr.Storage(fmt.Errorf("decode snapshot: %w", err))
	}
	return p.State, nil
}
