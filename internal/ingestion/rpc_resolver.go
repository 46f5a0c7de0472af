package ingestion

import (
	"context"
	"fmt"

	"wallet-pnl-lab/internal/evm"
)

// RPCInputResolver fetches transaction calldata over JSON-RPC. Scan APIs
// return token transfers without the originating calldata, which the
// classifier needs to identify the vault method.
type RPCInputResolver struct {
	client *evm.HTTPClient
}

// NewRPCInputResolver creates a resolver backed by an EVM RPC client.
func NewRPCInputResolver(client *evm.HTTPClient) *RPCInputResolver {
	return &RPCInputResolver{client: client}
}

// TransactionInput returns the calldata of the given transaction.
func (r *RPCInputResolver) TransactionInput(ctx context.Context, txHash string) (string, error) {
	tx, err := r.client.GetTransactionByHash(ctx, txHash)
	if err != nil {
		return "", err
	}
	if tx == nil {
		return "", fmt.Errorf("transaction %s not found", txHash)
	}
	return tx.Input, nil
}

var _ InputResolver = (*RPCInputResolver)(nil)
