package domain

import "strings"

// Address identifies a participant or custodian as a 20-byte identity in
// 0x-prefixed lowercase hex, the same textual form the host ledger uses.
type Address string

// ZeroAddress is the sentinel for "unset" (e.g. an unjoined game side).
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases an address so comparisons are byte-equal
// regardless of the checksum casing callers send.
func NormalizeAddress(a Address) Address {
	return Address(strings.ToLower(string(a)))
}

// IsZero reports whether the address is empty or the all-zero sentinel.
func (a Address) IsZero() bool {
	return a == "" || NormalizeAddress(a) == ZeroAddress
}
