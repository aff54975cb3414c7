package stratum

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests reproduce the literal end-to-end scenarios from the
// specification's worked example, including the real Litecoin block that
// exercises merkle construction, header assembly, endian swaps, the
// scrypt kernel, and target comparison together.

// TestScenario_S4_SubscribeReply reproduces the literal mining.subscribe
// reply and checks that it is decoded into exactly the advertised
// subscription id and extranonce range, and that it triggers
// mining.authorize.
func TestScenario_S4_SubscribeReply(t *testing.T) {
	m, server := newTestMiner(t)
	req := pendingRequest{method: methodSubscribe}
	result := json.RawMessage(`{"error":null,"id":1,"result":[[["mining.notify","ae6812eb4cd7735a302a8a9dd95cf71f"]],"f800880e",4]}`)

	var frame struct {
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(result, &frame))

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	require.NoError(t, m.HandleReply(req, frame.Result, nil))

	assert.True(t, m.subscription.Subscribed())
	assert.Equal(t, "ae6812eb4cd7735a302a8a9dd95cf71f", m.subscription.ID())
	assert.Equal(t, "f800880e", m.subscription.ExtraNonce1())
	assert.Equal(t, 4, m.subscription.ExtraNonce2Size())

	select {
	case data := <-readDone:
		assert.Contains(t, string(data), "mining.authorize")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an authorize request to be sent after subscribe")
	}
}

// s5NotifyParams is the literal mining.notify template from the worked
// example, a real Litecoin block.
func s5NotifyParams() NotifyParams {
	return NotifyParams{
		JobID:    "1db7",
		PrevHash: "0b29bfff96c5dc08ee65e63d7b7bab431745b089ff0cf95b49a1631e1d2f9f31",
		Coinb1:   "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff2503777d07062f503253482f0405b8c75208",
		Coinb2:   "0b2f436f696e48756e74722f0000000001603f352a010000001976a914c633315d376c20a973a758f7422d67f7bfed9c5888ac00000000",
		MerkleBranches: []string{
			"f0dbca1ee1a9f6388d07d97c1ab0de0e41acdf2edac4b95780ba0a1ec14103b3",
			"8e43fd2988ac40c5d97702b7e5ccdf5b06d58f0e0d323f74dd5082232c1aedf7",
			"1177601320ac928b8c145d771dae78a3901a089fa4aca8def01cbff747355818",
			"9f64f3b0d9edddb14be6f71c3ac2e80455916e207ffc003316c6a515452aa7b4",
			"2d0b54af60fad4ae59ec02031f661d026f2bb95e2eeb1e6657a35036c017c595",
		},
		Version:   "00000002",
		Nbits:     "1b148272",
		Ntime:     "52c7b81a",
		CleanJobs: true,
	}
}

// TestScenario_S5_KnownScryptShare reproduces the worked example's known
// share: subscribe (S4), set_difficulty(32), then notify with the real
// Litecoin block template above. Mining from nonce 1210450365 must find
// the first valid share at nonce 482601c0, extranonce2 00000000.
func TestScenario_S5_KnownScryptShare(t *testing.T) {
	sub := NewScryptSubscription()
	require.NoError(t, sub.SetSubscription("ae6812eb4cd7735a302a8a9dd95cf71f", "f800880e", 4))
	require.NoError(t, sub.SetDifficulty(32))

	job, err := sub.CreateJob(s5NotifyParams())
	require.NoError(t, err)

	job.wg.Add(1)
	go job.mineWorker(1210450365, 1)

	select {
	case share := <-job.shares:
		assert.Equal(t, "1db7", share.JobID)
		assert.Equal(t, "00000000", share.ExtraNonce2)
		assert.Equal(t, "52c7b81a", share.Ntime)
		assert.Equal(t, "482601c0", share.Nonce)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out scanning for the known scrypt share")
	}
	job.Stop()
}

// TestScenario_S6_NotifyPreemptsRunningJob reproduces the worked
// example's preemption: a second mining.notify for a different job_id
// arrives while a job built from the S5 template is still running (here
// on a SHA-256d miner). It checks that the prior job has been signaled to
// stop and that the new job has become the current one.
func TestScenario_S6_NotifyPreemptsRunningJob(t *testing.T) {
	m, server := newTestMiner(t)
	require.NoError(t, m.subscription.SetSubscription("ae6812eb4cd7735a302a8a9dd95cf71f", "f800880e", 4))

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	m.spawnJob(s5NotifyParams())

	m.mu.Lock()
	first := m.job
	m.mu.Unlock()
	require.Equal(t, "1db7", first.ID())

	time.Sleep(20 * time.Millisecond)

	second := s5NotifyParams()
	second.JobID = "1db8"
	m.spawnJob(second)

	assert.True(t, first.done.Load(), "the superseded job must have been signaled to stop")

	m.mu.Lock()
	current := m.job
	m.mu.Unlock()
	assert.Equal(t, "1db8", current.ID())
}
