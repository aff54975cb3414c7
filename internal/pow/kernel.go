// Package pow implements the proof-of-work kernels used to hash a
// candidate block header: SHA-256d for Bitcoin-family coins and scrypt
// for Litecoin-family coins.
package pow

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Kernel hashes an 80-byte block header into a 32-byte digest.
type Kernel func(header []byte) [32]byte

// SHA256d is double SHA-256: sha256(sha256(m)).
func SHA256d(header []byte) [32]byte {
	first := sha256.Sum256(header)
	return sha256.Sum256(first[:])
}

// ErrInvalidParameter is returned by NewScrypt when N is not a power of
// two greater than or equal to 2.
var ErrInvalidParameter = fmt.Errorf("pow: invalid scrypt parameter")

// NewScrypt builds a Kernel around golang.org/x/crypto/scrypt with the
// given cost parameters and a fixed 32-byte output length. N must be a
// power of two >= 2.
func NewScrypt(n, r, p int) (Kernel, error) {
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: N=%d must be a power of two >= 2", ErrInvalidParameter, n)
	}
	return func(header []byte) [32]byte {
		digest, err := scrypt.Key(header, header, n, r, p, 32)
		if err != nil {
			// Only n is validated above; scrypt.Key can still fail for r
			// and p values that are too large.
			panic(fmt.Errorf("pow: scrypt: %w", err))
		}
		var out [32]byte
		copy(out[:], digest)
		return out
	}, nil
}

// Scrypt is the standard Litecoin-family kernel: N=1024, r=1, p=1.
var Scrypt = mustScrypt(1024, 1, 1)

func mustScrypt(n, r, p int) Kernel {
	k, err := NewScrypt(n, r, p)
	if err != nil {
		panic(err)
	}
	return k
}
