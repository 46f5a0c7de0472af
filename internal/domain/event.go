package domain

// OpKind classifies a wallet transaction by the vault method that produced it.
type OpKind string

const (
	// OpKindCapitalAdd is a capital deposit into the wallet's strategy vault.
	OpKindCapitalAdd OpKind = "CapitalAdd"
	// OpKindCapitalRemove is a capital withdrawal from the vault.
	OpKindCapitalRemove OpKind = "CapitalRemove"
	// OpKindTrade is a realized trading gain or loss.
	OpKindTrade OpKind = "Trade"
	// OpKindUnknown marks transactions whose method could not be classified.
	// They are kept for provenance but ignored by all computations.
	OpKindUnknown OpKind = "Unknown"
)

// String returns the string representation of OpKind.
func (k OpKind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the classified values.
func (k OpKind) IsValid() bool {
	return k == OpKindCapitalAdd || k == OpKindCapitalRemove || k == OpKindTrade
}

// Scope identifies an independent aggregation run: a wallet, optionally
// narrowed to one sub-account. An empty Account means the whole wallet.
type Scope struct {
	Wallet  string
	Account string
}

// IsWallet reports whether the scope covers the whole wallet.
func (s Scope) IsWallet() bool {
	return s.Account == ""
}

// String returns "wallet" or "wallet/account".
func (s Scope) String() string {
	if s.Account == "" {
		return s.Wallet
	}
	return s.Wallet + "/" + s.Account
}

// TransactionEvent is a classified, signed wallet transaction produced by the
// ingestion layer. Value is already signed: outflows are negative.
type TransactionEvent struct {
	EventID     string // deterministic hash, see internal/idhash
	Wallet      string
	Account     string // sub-account id, empty if none
	TxHash      string
	BlockNumber int64
	LogIndex    int
	Timestamp   int64 // unix seconds
	Kind        OpKind
	Value       float64 // signed token amount in human units
}

// InScope reports whether the event belongs to the given scope.
func (e *TransactionEvent) InScope(s Scope) bool {
	if e.Wallet != s.Wallet {
		return false
	}
	return s.Account == "" || e.Account == s.Account
}
