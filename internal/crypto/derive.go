// Package crypto provides the derived-address scheme used for structural
// authorization (resolver authority, escrow custodians) and the HMAC
// signing of confidential-computation callbacks.
package crypto

import (
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/knostra/knostrad/internal/domain"
)

// Derivation seeds. These mirror the ledger's account namespaces: a derived
// address is recognized structurally, never stored.
const (
	resolverSeed = "resolver_authority"
	vaultSeed    = "treasury_vault"
	feePoolSeed  = "protocol_fee_pool"
)

// ResolverAddress derives the address of the resolver authority for the
// given program namespace. Only a caller presenting this address may resolve
// markets.
func ResolverAddress(namespace string) domain.Address {
	return derive(resolverSeed, []byte(namespace))
}

// VaultAddress derives the escrow custodian address for one market. Stake is
// locked under this address and paid out of it on claim.
func VaultAddress(ref domain.MarketRef) domain.Address {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], ref.MarketID)
	return derive(vaultSeed, append([]byte(strings.ToLower(string(ref.Owner))), id[:]...))
}

// FeePoolAddress derives the protocol fee pool custodian for the given
// program namespace.
func FeePoolAddress(namespace string) domain.Address {
	return derive(feePoolSeed, []byte(namespace))
}

func derive(seed string, material []byte) domain.Address {
	h := ethcrypto.Keccak256(append([]byte(seed), material...))
	addr := common.BytesToAddress(h[12:])
	return domain.NormalizeAddress(domain.Address(addr.Hex()))
}
