package stratum

import "fmt"

// Algorithm identifies which proof-of-work kernel a Subscription binds.
type Algorithm string

const (
	SHA256d Algorithm = "sha256d"
	Scrypt  Algorithm = "scrypt"
)

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case SHA256d, Scrypt:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("stratum: unknown algorithm %q", s)
	}
}
