package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// ScanSource fetches ERC-20 token transfers from an etherscan-family scan API
// (module=account&action=tokentx).
type ScanSource struct {
	baseURL string
	apiKey  string
	chainID string
	client  *http.Client
}

// ScanOption configures ScanSource.
type ScanOption func(*ScanSource)

// WithScanHTTPClient sets a custom http.Client.
func WithScanHTTPClient(client *http.Client) ScanOption {
	return func(s *ScanSource) {
		s.client = client
	}
}

// WithChainID sets the chainid query parameter (v2 multichain APIs).
func WithChainID(chainID string) ScanOption {
	return func(s *ScanSource) {
		s.chainID = chainID
	}
}

// NewScanSource creates a scan API transfer source.
func NewScanSource(baseURL, apiKey string, opts ...ScanOption) *ScanSource {
	s := &ScanSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ TransferSource = (*ScanSource)(nil)

// scanResponse is the scan API envelope.
type scanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// scanTransfer is one tokentx result row. The API returns every numeric field
// as a decimal string.
type scanTransfer struct {
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenDecimal string `json:"tokenDecimal"`
	TimeStamp    string `json:"timeStamp"`
	BlockNumber  string `json:"blockNumber"`
	Input        string `json:"input"`
}

// Fetch returns transfers of token involving wallet starting at fromBlock,
// ordered by block ascending.
func (s *ScanSource) Fetch(ctx context.Context, wallet, token string, fromBlock uint64) ([]*Transfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("contractaddress", token)
	params.Set("address", wallet)
	params.Set("sort", "asc")
	params.Set("startblock", strconv.FormatUint(fromBlock, 10))
	params.Set("apikey", s.apiKey)
	if s.chainID != "" {
		params.Set("chainid", s.chainID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read scan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan api status %d: %s", resp.StatusCode, string(body))
	}

	var envelope scanResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal scan response: %w", err)
	}

	// "No transactions found" arrives with status 0 and a string result.
	var rows []scanTransfer
	if err := json.Unmarshal(envelope.Result, &rows); err != nil {
		if envelope.Status == "0" {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api error: %s", envelope.Message)
	}

	transfers := make([]*Transfer, 0, len(rows))
	for _, row := range rows {
		t := &Transfer{
			Hash:  row.Hash,
			From:  row.From,
			To:    row.To,
			Value: row.Value,
			Input: row.Input,
		}
		t.TokenDecimal, _ = strconv.Atoi(row.TokenDecimal)
		t.Timestamp, _ = strconv.ParseInt(row.TimeStamp, 10, 64)
		t.BlockNumber, _ = strconv.ParseUint(row.BlockNumber, 10, 64)
		transfers = append(transfers, t)
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].BlockNumber < transfers[j].BlockNumber
	})

	return transfers, nil
}
