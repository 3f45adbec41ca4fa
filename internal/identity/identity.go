// Package identity derives the relay pairing identifier from a transfer
// password. The identifier is never persisted: it exists only for the
// lifetime of a single handshake attempt.
package identity

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

// Size is the length of an ID in bytes.
const Size = 32

// ID is the 32-byte value derived from a transfer password. It doubles as
// the SPAKE2 identity input and as the relay's pairing-table key, so two
// peers holding the same password always agree on the same ID without any
// prior exchange.
type ID [Size]byte

// Zero is the uninitialized ID value.
var Zero = ID{}

// Derive computes id = Blake2s-256(password). Two calls with the same
// password always produce the same ID; this is the only way an ID is ever
// constructed in this package — there is no random generation and nothing
// is ever written to disk.
func Derive(password string) ID {
	sum := blake2s.Sum256([]byte(password))
	return ID(sum)
}

// FromBytes builds an ID from a 32-byte slice, typically the leading 32
// bytes of a 65-byte handshake message read off the wire.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("identity: invalid id length: got %d bytes, want %d", len(b), Size)
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// String returns the hex representation of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString returns a shortened hex representation (first 4 bytes), for
// log lines where the full 32-byte id would be noise.
func (id ID) ShortString() string {
	return hex.EncodeToString(id[:4])
}

// Bytes returns the ID as a byte slice.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether the ID is the uninitialized zero value.
func (id ID) IsZero() bool {
	return id == Zero
}

// Equal reports whether two IDs are identical.
func (id ID) Equal(other ID) bool {
	return id == other
}
