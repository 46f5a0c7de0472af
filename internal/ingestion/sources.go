package ingestion

import "context"

// Transfer is one raw token transfer row as reported by a scan API.
// Value is the unsigned integer token amount in minimal units.
type Transfer struct {
	Hash         string
	From         string
	To           string
	Value        string
	TokenDecimal int
	Timestamp    int64
	BlockNumber  uint64
	// Input is the 0x-prefixed calldata of the transfer's transaction,
	// resolved separately when the source does not carry it.
	Input string
}

// TransferSource provides token transfers of a wallet from an external source.
type TransferSource interface {
	// Fetch returns transfers of token involving wallet starting at fromBlock,
	// ordered by block ascending.
	Fetch(ctx context.Context, wallet, token string, fromBlock uint64) ([]*Transfer, error)
}

// InputResolver resolves transaction calldata for transfers whose source does
// not deliver it.
type InputResolver interface {
	// TransactionInput returns the 0x-prefixed calldata of txHash,
	// empty when the transaction is unknown.
	TransactionInput(ctx context.Context, txHash string) (string, error)
}
