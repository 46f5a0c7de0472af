// Package idhash computes deterministic identifiers for ingested records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(lower(wallet)|lower(txHash)|logIndex)
// Returns hex-encoded hash (64 characters).
//
// The same on-chain transfer always hashes to the same ID, which is what
// makes event inserts idempotent across ingestion re-runs.
func ComputeEventID(wallet, txHash string, logIndex int) string {
	data := fmt.Sprintf("%s|%s|%d",
		strings.ToLower(wallet),
		strings.ToLower(txHash),
		logIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
