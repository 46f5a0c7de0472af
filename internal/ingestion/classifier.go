package ingestion

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/idhash"
)

// methodSpec describes how to interpret a classified vault method.
type methodSpec struct {
	kind           domain.OpKind
	accountArg     int  // index of the accountId argument
	accountIsArray bool // string[] vs string
}

// Vault method signatures this classifier recognizes. Both scalar and array
// accountId variants exist in the wild.
var methodSignatures = map[string]methodSpec{
	"LiquidityAdd(string[],address,address,uint256)":                                                 {kind: domain.OpKindCapitalAdd, accountArg: 0, accountIsArray: true},
	"LiquidityAdd(string,address,address,uint256)":                                                   {kind: domain.OpKindCapitalAdd, accountArg: 0},
	"LiquidityRemove(string[],address,address,uint256)":                                              {kind: domain.OpKindCapitalRemove, accountArg: 0, accountIsArray: true},
	"LiquidityRemove(string,address,address,uint256)":                                                {kind: domain.OpKindCapitalRemove, accountArg: 0},
	"openPosition(address,string,address,address,int256,(address,address)[],uint256,address)":        {kind: domain.OpKindTrade, accountArg: 1},
	"openPosition(address,string,address,address,int256,(address,address)[],uint256,address,string)": {kind: domain.OpKindTrade, accountArg: 1},
}

// selectorTable maps 4-byte method selectors to their specs, built once.
var selectorTable = buildSelectorTable()

func buildSelectorTable() map[[4]byte]methodSpec {
	table := make(map[[4]byte]methodSpec, len(methodSignatures))
	for sig, spec := range methodSignatures {
		h := sha3.NewLegacyKeccak256()
		h.Write([]byte(sig))
		var sel [4]byte
		copy(sel[:], h.Sum(nil)[:4])
		table[sel] = spec
	}
	return table
}

// Classifier turns raw token transfers into classified transaction events.
// Classification is selector-based: the transaction calldata's first four
// bytes identify the vault method, and only the accountId argument is pulled
// out of the calldata.
type Classifier struct {
	wallet string
}

// NewClassifier creates a classifier for one wallet.
func NewClassifier(wallet string) *Classifier {
	return &Classifier{wallet: wallet}
}

// Classify builds a TransactionEvent from a transfer. Transfers whose calldata
// matches no known method come back with OpKindUnknown; they are stored for
// provenance but never aggregated.
func (c *Classifier) Classify(t *Transfer) *domain.TransactionEvent {
	kind := domain.OpKindUnknown
	account := ""

	if data, ok := decodeCalldata(t.Input); ok {
		var sel [4]byte
		copy(sel[:], data[:4])
		if spec, known := selectorTable[sel]; known {
			kind = spec.kind
			account = extractAccount(data[4:], spec)
		}
	}

	value := tokenUnits(t.Value, t.TokenDecimal)
	if strings.EqualFold(t.From, c.wallet) {
		value = -value
	}

	return &domain.TransactionEvent{
		EventID:     idhash.ComputeEventID(c.wallet, t.Hash, 0),
		Wallet:      c.wallet,
		Account:     account,
		TxHash:      t.Hash,
		BlockNumber: int64(t.BlockNumber),
		Timestamp:   t.Timestamp,
		Kind:        kind,
		Value:       value,
	}
}

// tokenUnits converts a minimal-unit integer amount to human token units.
// Exact decimal shift, truncated to float64 only at the end.
func tokenUnits(raw string, decimals int) float64 {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	f, _ := d.Shift(int32(-decimals)).Float64()
	return f
}

// decodeCalldata hex-decodes 0x-prefixed calldata, requiring at least a selector.
func decodeCalldata(input string) ([]byte, bool) {
	s := strings.TrimPrefix(input, "0x")
	if len(s) < 8 {
		return nil, false
	}
	data, err := hex.DecodeString(s)
	if err != nil || len(data) < 4 {
		return nil, false
	}
	return data, true
}

// extractAccount reads the accountId argument out of ABI-encoded arguments.
// For string[] the first element is taken. Malformed encodings yield "".
func extractAccount(args []byte, spec methodSpec) string {
	offset, ok := wordUint(args, spec.accountArg*32)
	if !ok {
		return ""
	}

	if !spec.accountIsArray {
		return readString(args, offset)
	}

	// string[]: length word, then per-element offsets relative to the word
	// after the length.
	n, ok := wordUint(args, int(offset))
	if !ok || n == 0 {
		return ""
	}
	base := int(offset) + 32
	elemOffset, ok := wordUint(args, base)
	if !ok {
		return ""
	}
	return readString(args, uint64(base)+elemOffset)
}

// readString reads an ABI-encoded string at the given byte offset.
func readString(args []byte, offset uint64) string {
	length, ok := wordUint(args, int(offset))
	if !ok {
		return ""
	}
	start := offset + 32
	end := start + length
	if length > 1024 || end > uint64(len(args)) {
		return ""
	}
	return string(args[start:end])
}

// wordUint reads a 32-byte big-endian word at pos as uint64. Words with any
// of the upper 24 bytes set are rejected.
func wordUint(args []byte, pos int) (uint64, bool) {
	if pos < 0 || pos+32 > len(args) {
		return 0, false
	}
	word := args[pos : pos+32]
	for _, b := range word[:24] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(word[24:]), true
}
