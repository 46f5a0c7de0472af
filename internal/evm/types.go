package evm

import (
	"fmt"
	"strconv"
	"strings"
)

// Transaction is the subset of an EVM transaction the classifier needs.
type Transaction struct {
	Hash        string
	From        string
	To          string
	Input       string // 0x-prefixed calldata
	Value       string // 0x-prefixed wei amount
	BlockNumber uint64
}

// Log is an EVM event log entry.
type Log struct {
	Address     string
	Topics      []string
	Data        string
	BlockNumber uint64
	TxHash      string
	LogIndex    int
	Removed     bool
}

// LogsFilter selects which logs a subscription delivers.
type LogsFilter struct {
	// Addresses restricts logs to the given contract addresses. Empty means all.
	Addresses []string
	// Topics restricts logs by topic position. Empty means all.
	Topics []string
}

// LogNotification is one log delivered by a live subscription.
type LogNotification struct {
	Log Log
}

// parseHexUint64 parses a 0x-prefixed hex quantity.
func parseHexUint64(s string) (uint64, error) {
	if s == "" || s == "0x" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}

// formatHexUint64 renders a quantity as 0x-prefixed hex.
func formatHexUint64(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
