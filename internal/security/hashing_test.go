package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	credential := []byte("Correct1HorseStaple")
	hash, err := h.Hash(credential)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, credential); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongCredential(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, _ := h.Hash([]byte("Correct1HorseStaple"))
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare with wrong credential should fail")
	}
}

func TestHasher_CostClamping(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h0 := NewHasher(0); h0.Cost < bcrypt.MinCost {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if hBig := NewHasher(99); hBig.Cost > bcrypt.MaxCost {
		t.Errorf("oversized cost should be clamped to MaxCost, got %d", hBig.Cost)
	}
}
