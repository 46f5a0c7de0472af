package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScanSourceFetch(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"hash": "0xb", "from": "0xf1", "to": "0xw", "value": "2000000",
				 "tokenDecimal": "6", "timeStamp": "1700000100", "blockNumber": "205", "input": "0xbb"},
				{"hash": "0xa", "from": "0xw", "to": "0xf2", "value": "1000000",
				 "tokenDecimal": "6", "timeStamp": "1700000000", "blockNumber": "201", "input": "0xaa"}
			]
		}`))
	}))
	defer server.Close()

	source := NewScanSource(server.URL, "key-123", WithChainID("137"))
	transfers, err := source.Fetch(context.Background(), "0xw", "0xtoken", 200)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	want := map[string]string{
		"module": "account", "action": "tokentx",
		"address": "0xw", "contractaddress": "0xtoken",
		"sort": "asc", "startblock": "200",
		"apikey": "key-123", "chainid": "137",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query param %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	// Sorted by block ascending regardless of response order.
	if transfers[0].Hash != "0xa" || transfers[1].Hash != "0xb" {
		t.Errorf("unexpected order: %s, %s", transfers[0].Hash, transfers[1].Hash)
	}
	first := transfers[0]
	if first.BlockNumber != 201 || first.Timestamp != 1700000000 || first.TokenDecimal != 6 {
		t.Errorf("unexpected transfer fields: %+v", first)
	}
	if first.Value != "1000000" || first.Input != "0xaa" {
		t.Errorf("unexpected transfer payload: %+v", first)
	}
}

func TestScanSourceNoTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": []}`))
	}))
	defer server.Close()

	source := NewScanSource(server.URL, "key")
	transfers, err := source.Fetch(context.Background(), "0xw", "0xtoken", 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected no transfers, got %d", len(transfers))
	}
}

func TestScanSourceStringResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": "No transactions found"}`))
	}))
	defer server.Close()

	source := NewScanSource(server.URL, "key")
	transfers, err := source.Fetch(context.Background(), "0xw", "0xtoken", 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if transfers != nil {
		t.Errorf("expected nil transfers, got %v", transfers)
	}
}

func TestScanSourceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "1", "message": "NOTOK", "result": "Max rate limit reached"}`))
	}))
	defer server.Close()

	source := NewScanSource(server.URL, "key")
	if _, err := source.Fetch(context.Background(), "0xw", "0xtoken", 0); err == nil {
		t.Fatal("expected error for non-array result with ok status")
	}
}

func TestScanSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewScanSource(server.URL, "key")
	if _, err := source.Fetch(context.Background(), "0xw", "0xtoken", 0); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}
