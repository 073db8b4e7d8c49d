package crypto

import (
	"strings"
	"testing"

	"github.com/knostra/knostrad/internal/domain"
)

func TestResolverAddressDeterministic(t *testing.T) {
	a := ResolverAddress("knostra")
	b := ResolverAddress("knostra")
	if a != b {
		t.Fatalf("same namespace derived different addresses: %s vs %s", a, b)
	}
	if a == ResolverAddress("other") {
		t.Fatal("distinct namespaces derived the same resolver address")
	}
	if !strings.HasPrefix(string(a), "0x") || len(a) != 42 {
		t.Fatalf("unexpected address form %q", a)
	}
	if a != domain.NormalizeAddress(a) {
		t.Fatalf("derived address %q is not normalized", a)
	}
}

func TestVaultAddressPerMarket(t *testing.T) {
	refA := domain.MarketRef{Owner: "0x1111111111111111111111111111111111111111", MarketID: 1}
	refB := domain.MarketRef{Owner: "0x1111111111111111111111111111111111111111", MarketID: 2}
	refC := domain.MarketRef{Owner: "0x2222222222222222222222222222222222222222", MarketID: 1}

	a := VaultAddress(refA)
	if a != VaultAddress(refA) {
		t.Fatal("vault address is not deterministic")
	}
	if a == VaultAddress(refB) || a == VaultAddress(refC) {
		t.Fatal("distinct markets share a vault address")
	}
}

func TestVaultAddressCaseInsensitiveOwner(t *testing.T) {
	lower := domain.MarketRef{Owner: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", MarketID: 7}
	upper := domain.MarketRef{Owner: "0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD", MarketID: 7}
	if VaultAddress(lower) != VaultAddress(upper) {
		t.Fatal("owner casing changed the derived vault address")
	}
}

func TestDerivedAddressesDisjoint(t *testing.T) {
	ns := "knostra"
	resolver := ResolverAddress(ns)
	pool := FeePoolAddress(ns)
	if resolver == pool {
		t.Fatal("resolver and fee pool derived the same address")
	}
}

func TestCallbackSignerRoundTrip(t *testing.T) {
	signer := NewCallbackSigner("shared-secret")
	body := []byte(`{"job_id":42,"outcome":"success"}`)

	sig := signer.Sign(body)
	if !signer.Verify(body, sig) {
		t.Fatal("valid signature rejected")
	}
	if signer.Verify([]byte(`{"job_id":43}`), sig) {
		t.Fatal("signature accepted for a different body")
	}
	if signer.Verify(body, "not-base64!!") {
		t.Fatal("malformed signature accepted")
	}
	other := NewCallbackSigner("different-secret")
	if other.Verify(body, sig) {
		t.Fatal("signature accepted under a different secret")
	}
}
