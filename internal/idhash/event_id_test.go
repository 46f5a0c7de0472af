package idhash

import "testing"

func TestComputeEventID_Deterministic(t *testing.T) {
	a := ComputeEventID("0xWallet", "0xabc123", 3)
	b := ComputeEventID("0xWallet", "0xabc123", 3)

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestComputeEventID_CaseInsensitiveAddresses(t *testing.T) {
	a := ComputeEventID("0xWALLET", "0xABC123", 3)
	b := ComputeEventID("0xwallet", "0xabc123", 3)

	if a != b {
		t.Error("hex-address casing changed the ID")
	}
}

func TestComputeEventID_DistinctInputs(t *testing.T) {
	base := ComputeEventID("0xwallet", "0xabc123", 3)

	if ComputeEventID("0xother", "0xabc123", 3) == base {
		t.Error("different wallet produced same ID")
	}
	if ComputeEventID("0xwallet", "0xdef456", 3) == base {
		t.Error("different tx hash produced same ID")
	}
	if ComputeEventID("0xwallet", "0xabc123", 4) == base {
		t.Error("different log index produced same ID")
	}
}
