// Package wal implements ParqueDB's per-namespace append-only event log:
// batched blocks written to storage under
// .wal/<ns>/<firstSeq>-<lastSeq>-<blockID>.blob, and the per-namespace
// sequence counter write ranges are allocated from. The counter lives in
// memory and is recovered from block file names and the pending index;
// no counter file is written.
package wal

import (
	"encoding/json"
	"time"

	"github.com/parquedb/parquedb/eventid"
)

// Op names the kind of mutation an Event records.
type Op string

const (
	OpCreate Op = "CREATE"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is one immutable record in the log.
type Event struct {
	ID     eventid.ID     `json:"id"`
	Seq    int64          `json:"seq"`
	TS     time.Time      `json:"ts"`
	Op     Op             `json:"op"`
	Target string         `json:"target"`
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
	Actor  string         `json:"actor"`
}

// Block is the physical unit written to storage: a contiguous run of
// events for one namespace.
type Block struct {
	Namespace string  `json:"ns"`
	FirstSeq  int64   `json:"firstSeq"`
	LastSeq   int64   `json:"lastSeq"`
	Events    []Event `json:"events"`
}

// EncodeBlock serializes a block as plain JSON (json.Marshal), the
// ambient encoding the rest of this codebase's durable records use.
func EncodeBlock(b *Block) ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlock parses a block written by EncodeBlock.
func DecodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
