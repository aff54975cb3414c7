package stratum

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomstarternetwork/nightminer/internal/pow"
)

func newTestJob(t *testing.T, target *big.Int, kernel pow.Kernel) *Job {
	t.Helper()
	params := NotifyParams{
		JobID:          "job1",
		PrevHash:       "0000000000000000000000000000000000000000000000000000000000000000",
		Coinb1:         "01",
		Coinb2:         "02",
		MerkleBranches: nil,
		Version:        "00000001",
		Nbits:          "1d00ffff",
		Ntime:          "4e7a9e2b",
	}
	job, err := newJob(params, []byte{0xaa, 0xbb}, 4, target, kernel)
	require.NoError(t, err)
	return job
}

func TestJob_MeetsEasyTargetQuickly(t *testing.T) {
	job := newTestJob(t, maxTarget, pow.SHA256d)

	shares := job.Mine(1)
	select {
	case share, ok := <-shares:
		require.True(t, ok)
		assert.Equal(t, "job1", share.JobID)
		assert.Len(t, share.Nonce, 8)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a share against the maximum target")
	}
	job.Stop()
}

func TestJob_StopEndsTheShareStream(t *testing.T) {
	job := newTestJob(t, big.NewInt(0), pow.SHA256d)

	shares := job.Mine(2)
	time.Sleep(20 * time.Millisecond)
	job.Stop()

	_, ok := <-shares
	assert.False(t, ok, "share channel should be closed after Stop")
}

func TestJob_DoesNotSelfStopAfterFirstShare(t *testing.T) {
	job := newTestJob(t, maxTarget, pow.SHA256d)

	shares := job.Mine(1)
	first := <-shares
	assert.NotEmpty(t, first.Nonce)

	select {
	case _, ok := <-shares:
		assert.True(t, ok, "job must keep producing shares against a trivial target")
	case <-time.After(2 * time.Second):
		t.Fatal("job stopped emitting after the first share; it must keep running until Stop")
	}
	job.Stop()
}

func TestMeetsTarget_ReversesDigestBeforeComparing(t *testing.T) {
	// A digest whose raw bytes are numerically larger than target but whose
	// *reversed* bytes are smaller must be accepted: this is the exact
	// scenario the unreversed comparison bug would get wrong.
	var digest [32]byte
	digest[0] = 0x01 // raw interpretation: 0x01 followed by 31 zero bytes, enormous
	// reversed -> 31 zero bytes then 0x01, i.e. the integer 1
	target := big.NewInt(0xff)
	assert.True(t, meetsTarget(digest, target))
}
