package stratum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTarget_ZeroDifficultyIsMax(t *testing.T) {
	target, err := deriveTarget(0)
	require.NoError(t, err)
	assert.Equal(t, maxTarget, target)
}

func TestDeriveTarget_RejectsNegative(t *testing.T) {
	_, err := deriveTarget(-1)
	assert.ErrorIs(t, err, ErrNegativeDifficulty)
}

func TestDeriveTarget_DifficultyOne(t *testing.T) {
	target, err := deriveTarget(1)
	require.NoError(t, err)
	want := new(big.Int).Lsh(big.NewInt(0xffff0000), 192)
	assert.Equal(t, want, target)
	assert.Equal(t, "00000000ffff0000000000000000000000000000000000000000000000000000", fmtPad64(target))
}

func fmtPad64(v *big.Int) string {
	s := v.Text(16)
	for len(s) < 64 {
		s = "0" + s
	}
	return s
}

func TestDeriveTarget_MonotonicNonIncreasing(t *testing.T) {
	t1, err := deriveTarget(1)
	require.NoError(t, err)
	t10, err := deriveTarget(10)
	require.NoError(t, err)
	assert.True(t, t10.Cmp(t1) <= 0)
}

func TestShiftTarget_ScryptShift(t *testing.T) {
	base, err := deriveTarget(1)
	require.NoError(t, err)
	shifted := shiftTarget(base, 16)
	assert.Equal(t, new(big.Int).Lsh(base, 16).String(), shifted.String())
}
