package stratum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_SetSubscriptionOnlyOnce(t *testing.T) {
	sub := NewSHA256DSubscription()
	require.NoError(t, sub.SetSubscription("sub1", "aabbccdd", 4))
	err := sub.SetSubscription("sub2", "aabbccdd", 4)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscription_SetWorkerNameOnlyOnce(t *testing.T) {
	sub := NewSHA256DSubscription()
	require.NoError(t, sub.SetWorkerName("worker1"))
	err := sub.SetWorkerName("worker2")
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)
}

func TestSubscription_CreateJobRequiresSubscription(t *testing.T) {
	sub := NewSHA256DSubscription()
	_, err := sub.CreateJob(NotifyParams{})
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestSubscription_ScryptTargetIsShifted(t *testing.T) {
	scrypt := NewScryptSubscription()
	sha := NewSHA256DSubscription()

	require.NoError(t, scrypt.SetDifficulty(1))
	require.NoError(t, sha.SetDifficulty(1))

	require.NoError(t, scrypt.SetSubscription("s", "00", 4))
	require.NoError(t, sha.SetSubscription("s", "00", 4))

	scryptJob, err := scrypt.CreateJob(validNotifyParams())
	require.NoError(t, err)
	shaJob, err := sha.CreateJob(validNotifyParams())
	require.NoError(t, err)

	// scrypt target must equal the sha256d target left-shifted by 16 bits.
	assert.Equal(t, new(big.Int).Lsh(shaJob.target, 16).String(), scryptJob.target.String())
}

func validNotifyParams() NotifyParams {
	return NotifyParams{
		JobID:    "job1",
		PrevHash: "0000000000000000000000000000000000000000000000000000000000000000",
		Coinb1:   "01",
		Coinb2:   "02",
		Version:  "00000001",
		Nbits:    "1d00ffff",
		Ntime:    "4e7a9e2b",
	}
}
