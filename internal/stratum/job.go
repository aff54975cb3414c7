package stratum

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boomstarternetwork/nightminer/internal/pow"
	"github.com/boomstarternetwork/nightminer/internal/xendian"
)

const nonceSpaceBound = 0x7fffffff

// NotifyParams is the decoded payload of a mining.notify server
// notification: one work template for a new block.
type NotifyParams struct {
	JobID          string
	PrevHash       string
	Coinb1         string
	Coinb2         string
	MerkleBranches []string
	Version        string
	Nbits          string
	Ntime          string
	CleanJobs      bool
}

// Share is a candidate solution ready to submit via mining.submit.
type Share struct {
	JobID       string
	ExtraNonce2 string
	Ntime       string
	Nonce       string
}

// Job encapsulates one work template. It produces a stream of shares
// until Stop is called or the nonce space is exhausted; it never stops
// itself merely because a share was found.
type Job struct {
	id              string
	prevHash        []byte
	coinb1          []byte
	coinb2          []byte
	merkleBranches  [][]byte
	version         []byte
	nbits           []byte
	ntimeHex        string
	ntimeSwapped    []byte
	extraNonce1     []byte
	extraNonce2Size int
	target          *big.Int
	kernel          pow.Kernel

	done      atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	hashCount atomic.Uint64

	mu        sync.Mutex
	elapsed   time.Duration
	startedAt time.Time
	running   bool

	wg     sync.WaitGroup
	shares chan Share
}

// newJob decodes a notify template into wire byte order, ready for
// header assembly.
func newJob(p NotifyParams, extraNonce1 []byte, extraNonce2Size int, target *big.Int, kernel pow.Kernel) (*Job, error) {
	prevHash, err := xendian.SwapEndianWords(p.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: prevhash: %w", err)
	}
	coinb1, err := hex.DecodeString(p.Coinb1)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: coinb1: %w", err)
	}
	coinb2, err := hex.DecodeString(p.Coinb2)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: coinb2: %w", err)
	}
	version, err := xendian.SwapEndianWord(p.Version)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: version: %w", err)
	}
	nbits, err := xendian.SwapEndianWord(p.Nbits)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: nbits: %w", err)
	}
	ntimeSwapped, err := xendian.SwapEndianWord(p.Ntime)
	if err != nil {
		return nil, fmt.Errorf("stratum: job: ntime: %w", err)
	}

	branches := make([][]byte, len(p.MerkleBranches))
	for i, b := range p.MerkleBranches {
		branches[i], err = hex.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("stratum: job: merkle branch %d: %w", i, err)
		}
	}

	return &Job{
		id:              p.JobID,
		prevHash:        prevHash,
		coinb1:          coinb1,
		coinb2:          coinb2,
		merkleBranches:  branches,
		version:         version,
		nbits:           nbits,
		ntimeHex:        p.Ntime,
		ntimeSwapped:    ntimeSwapped,
		extraNonce1:     extraNonce1,
		extraNonce2Size: extraNonce2Size,
		target:          target,
		kernel:          kernel,
		stopCh:          make(chan struct{}),
		shares:          make(chan Share),
	}, nil
}

// merkleRoot computes the coinbase merkle root for a candidate
// extranonce2. This always uses SHA-256d regardless of the mining
// algorithm: Litecoin's merkle tree is SHA-256d even though its block
// proof of work is scrypt.
func (j *Job) merkleRoot(extraNonce2 []byte) [32]byte {
	coinbase := make([]byte, 0, len(j.coinb1)+len(j.extraNonce1)+len(extraNonce2)+len(j.coinb2))
	coinbase = append(coinbase, j.coinb1...)
	coinbase = append(coinbase, j.extraNonce1...)
	coinbase = append(coinbase, extraNonce2...)
	coinbase = append(coinbase, j.coinb2...)

	root := pow.SHA256d(coinbase)
	for _, branch := range j.merkleBranches {
		buf := append(append([]byte{}, root[:]...), branch...)
		root = pow.SHA256d(buf)
	}
	return root
}

// headerPrefix assembles the fixed portion of the 80-byte header (every
// field but the nonce) for a candidate extranonce2.
func (j *Job) headerPrefix(extraNonce2 []byte) []byte {
	root := j.merkleRoot(extraNonce2)

	prefix := make([]byte, 0, 76)
	prefix = append(prefix, j.version...)
	prefix = append(prefix, j.prevHash...)
	prefix = append(prefix, root[:]...)
	prefix = append(prefix, j.ntimeSwapped...)
	prefix = append(prefix, j.nbits...)
	return prefix
}

// meetsTarget reverses the digest and compares it, as a big-endian
// 256-bit integer, against the job's target.
func meetsTarget(digest [32]byte, target *big.Int) bool {
	reversed := make([]byte, 32)
	for i, b := range digest {
		reversed[31-i] = b
	}
	value := new(big.Int).SetBytes(reversed)
	return value.Cmp(target) <= 0
}

// Mine starts workers goroutines sharding the nonce space (worker k of
// workers scans nonces k, k+workers, k+2*workers, ...) and returns the
// channel shares are published on. The channel closes once every worker
// has returned, which only happens after Stop is called or the nonce
// space (extranonce2 and nonce, each bounded at 0x7fffffff) is exhausted.
func (j *Job) Mine(workers uint) <-chan Share {
	if workers == 0 {
		workers = 1
	}

	j.mu.Lock()
	j.startedAt = time.Now()
	j.running = true
	j.mu.Unlock()

	for k := uint(0); k < workers; k++ {
		j.wg.Add(1)
		go j.mineWorker(k, workers)
	}

	go func() {
		j.wg.Wait()
		j.mu.Lock()
		j.elapsed += time.Since(j.startedAt)
		j.running = false
		j.mu.Unlock()
		close(j.shares)
	}()

	return j.shares
}

func (j *Job) mineWorker(nonceStart, nonceStride uint) {
	defer j.wg.Done()

	extraNonce2Buf := make([]byte, j.extraNonce2Size)

	for extraNonce2 := uint64(0); extraNonce2 < nonceSpaceBound; extraNonce2++ {
		if j.done.Load() {
			return
		}

		putLE(extraNonce2Buf, uint32(extraNonce2))
		prefix := j.headerPrefix(extraNonce2Buf)

		for nonce := uint64(nonceStart); nonce < nonceSpaceBound; nonce += uint64(nonceStride) {
			if j.done.Load() {
				return
			}

			header := make([]byte, len(prefix)+4)
			copy(header, prefix)
			putLE(header[len(prefix):], uint32(nonce))

			digest := j.kernel(header)
			j.hashCount.Add(1)

			if meetsTarget(digest, j.target) {
				share := Share{
					JobID:       j.id,
					ExtraNonce2: hex.EncodeToString(extraNonce2Buf),
					Ntime:       j.ntimeHex,
					Nonce:       nonceToDisplayHex(uint32(nonce)),
				}
				select {
				case j.shares <- share:
				case <-j.stopCh:
					return
				}
			}
		}
	}
}

func putLE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// nonceToDisplayHex renders the 4-byte little-endian nonce as the
// big-endian hex string submitted on the wire.
func nonceToDisplayHex(nonce uint32) string {
	le := make([]byte, 4)
	putLE(le, nonce)
	be := make([]byte, 4)
	for i, b := range le {
		be[3-i] = b
	}
	return hex.EncodeToString(be)
}

// Stop signals every mining worker to exit at its next loop check and
// waits for them to finish.
func (j *Job) Stop() {
	j.done.Store(true)
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

// HashCount returns the number of hash attempts made so far.
func (j *Job) HashCount() uint64 { return j.hashCount.Load() }

// Elapsed returns the cumulative wall-clock time spent mining this job.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	elapsed := j.elapsed
	if j.running {
		elapsed += time.Since(j.startedAt)
	}
	return elapsed
}

// Hashrate returns hashes per second over the job's lifetime so far.
func (j *Job) Hashrate() float64 {
	elapsed := j.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(j.HashCount()) / elapsed
}

// ID returns the job's identifier as assigned by the pool.
func (j *Job) ID() string { return j.id }
