package stratum

import "math/big"

// maxTarget is 2^256 - 1, the largest value a 256-bit target can hold.
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// targetBase is 0xffff0000 * 2^192 + 1, the numerator of the difficulty-1
// target formula shared by both algorithm variants.
var targetBase = new(big.Int).Add(
	new(big.Int).Lsh(big.NewInt(0xffff0000), 192),
	big.NewInt(1),
)

// deriveTarget computes the 256-bit target for a given pool difficulty
// using exact rational arithmetic, matching the formula
//
//	target = min(floor(targetBase/difficulty - 0.5), 2^256-1)   (difficulty > 0)
//	target = 2^256-1                                            (difficulty == 0)
//
// A big.Float implementation of this formula loses precision because its
// default mantissa (53 bits) is far smaller than the 256-bit quantities
// involved; big.Rat keeps every intermediate value exact until the final
// floor.
func deriveTarget(difficulty float64) (*big.Int, error) {
	if difficulty < 0 {
		return nil, ErrNegativeDifficulty
	}
	if difficulty == 0 {
		return new(big.Int).Set(maxTarget), nil
	}

	diffRat := new(big.Rat).SetFloat64(difficulty)
	if diffRat == nil {
		return nil, ErrNegativeDifficulty
	}

	numRat := new(big.Rat).SetInt(targetBase)
	quotient := new(big.Rat).Quo(numRat, diffRat)
	adjusted := new(big.Rat).Sub(quotient, big.NewRat(1, 2))

	floored := new(big.Int).Div(adjusted.Num(), adjusted.Denom())
	if floored.Sign() < 0 {
		floored.SetInt64(0)
	}
	if floored.Cmp(maxTarget) > 0 {
		return new(big.Int).Set(maxTarget), nil
	}
	return floored, nil
}

// shiftTarget left-shifts a target by the given number of bits, clamping
// to 2^256-1. Scrypt pools report targets shifted left by 16 bits relative
// to the base formula (a pool display convention).
func shiftTarget(target *big.Int, bits uint) *big.Int {
	if bits == 0 {
		return target
	}
	shifted := new(big.Int).Lsh(target, bits)
	if shifted.Cmp(maxTarget) > 0 {
		return new(big.Int).Set(maxTarget)
	}
	return shifted
}
