package password

import (
	"errors"
	"strings"
	"testing"
)

// Cheapest accepted parameters, to keep the suite fast.
func testParams() Params {
	return Params{
		Memory:     8 * 1024,
		Passes:     1,
		Lanes:      1,
		SaltLength: 16,
		KeyLength:  16,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndCompare(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("run-5k-daily")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}
	if strings.Contains(encoded, "=$") || strings.HasSuffix(encoded, "=") {
		t.Fatalf("expected unpadded base64, got %s", encoded)
	}

	if err := h.Compare(encoded, "run-5k-daily"); err != nil {
		t.Fatalf("expected a match, got %v", err)
	}
	if err := h.Compare(encoded, "run-10k-daily"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected different hashes for the same password")
	}
}

func TestHashRejectsEmpty(t *testing.T) {
	if _, err := newTestHasher(t).Hash(""); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}

func TestCompareAcceptsPaddedBase64(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.Hash("padded-input")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	// 16 raw bytes encode to 22 characters; standard padding adds two.
	parts := strings.Split(encoded, "$")
	parts[4] += "=="
	parts[5] += "=="
	if err := h.Compare(strings.Join(parts, "$"), "padded-input"); err != nil {
		t.Fatalf("expected padded hash to match, got %v", err)
	}
}

func TestCompareMalformed(t *testing.T) {
	h := newTestHasher(t)
	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,p=1,x=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	}
	for _, encoded := range cases {
		if err := h.Compare(encoded, "x"); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newTestHasher(t)
	encoded, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if stale, err := weak.NeedsRehash(encoded); err != nil || stale {
		t.Fatalf("expected no rehash with the same params, got %v, %v", stale, err)
	}

	stronger := testParams()
	stronger.Passes = 2
	strong, err := NewHasher(stronger)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	if stale, err := strong.NeedsRehash(encoded); err != nil || !stale {
		t.Fatalf("expected rehash with stronger params, got %v, %v", stale, err)
	}
	if err := strong.Compare(encoded, "upgrade-me"); err != nil {
		t.Fatalf("old hash must still verify, got %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	mutations := []func(*Params){
		func(p *Params) { p.Memory = 1024 },
		func(p *Params) { p.Passes = 0 },
		func(p *Params) { p.Lanes = 0 },
		func(p *Params) { p.SaltLength = 8 },
		func(p *Params) { p.KeyLength = 8 },
	}
	for i, mutate := range mutations {
		p := DefaultParams()
		mutate(&p)
		if _, err := NewHasher(p); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
