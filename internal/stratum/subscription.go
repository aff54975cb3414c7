package stratum

import (
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/boomstarternetwork/nightminer/internal/pow"
)

// Subscription tracks per-session state assigned by the pool: the
// subscription id, extranonce range, current difficulty/target, and
// worker name. It is pure state plus a Job factory; mining orchestration
// lives in Miner.
type Subscription struct {
	mu sync.Mutex

	algorithm       Algorithm
	kernel          pow.Kernel
	targetShift     uint
	subscribed      bool
	id              string
	extraNonce1     []byte
	extraNonce2Size int
	difficulty      float64
	target          *big.Int
	workerName      string
	authorized      bool
}

// NewScryptSubscription builds a Subscription bound to the scrypt
// kernel. Scrypt pools report targets left-shifted by 16 bits relative
// to the base difficulty formula.
func NewScryptSubscription() *Subscription {
	return &Subscription{
		algorithm:   Scrypt,
		kernel:      pow.Scrypt,
		targetShift: 16,
		target:      new(big.Int).Set(maxTarget),
	}
}

// NewSHA256DSubscription builds a Subscription bound to the SHA-256d
// kernel, with no target shift.
func NewSHA256DSubscription() *Subscription {
	return &Subscription{
		algorithm: SHA256d,
		kernel:    pow.SHA256d,
		target:    new(big.Int).Set(maxTarget),
	}
}

// NewSubscription builds a Subscription for the named algorithm.
func NewSubscription(algo Algorithm) (*Subscription, error) {
	switch algo {
	case Scrypt:
		return NewScryptSubscription(), nil
	case SHA256d:
		return NewSHA256DSubscription(), nil
	default:
		_, err := ParseAlgorithm(string(algo))
		return nil, err
	}
}

// SetSubscription records the pool-assigned subscription id and
// extranonce range. It may be called exactly once.
func (s *Subscription) SetSubscription(id string, extraNonce1Hex string, extraNonce2Size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return ErrAlreadySubscribed
	}
	extraNonce1, err := hex.DecodeString(extraNonce1Hex)
	if err != nil {
		return err
	}

	s.id = id
	s.extraNonce1 = extraNonce1
	s.extraNonce2Size = extraNonce2Size
	s.subscribed = true
	return nil
}

// SetDifficulty recomputes and stores the target for the given
// difficulty. It affects only jobs created after this call returns; any
// job already mining keeps the target it was created with.
func (s *Subscription) SetDifficulty(difficulty float64) error {
	base, err := deriveTarget(difficulty)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.difficulty = difficulty
	s.target = shiftTarget(base, s.targetShift)
	return nil
}

// SetWorkerName records the authorized worker name. It may be called
// exactly once.
func (s *Subscription) SetWorkerName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authorized {
		return ErrAlreadyAuthorized
	}
	s.workerName = name
	s.authorized = true
	return nil
}

// CreateJob builds a Job from a notify template using the subscription's
// current extranonce and target. It fails if SetSubscription has not yet
// succeeded.
func (s *Subscription) CreateJob(p NotifyParams) (*Job, error) {
	s.mu.Lock()
	if !s.subscribed {
		s.mu.Unlock()
		return nil, ErrNotSubscribed
	}
	extraNonce1 := s.extraNonce1
	extraNonce2Size := s.extraNonce2Size
	target := s.target
	kernel := s.kernel
	s.mu.Unlock()

	return newJob(p, extraNonce1, extraNonce2Size, target, kernel)
}

// WorkerName returns the authorized worker name, or "" if not yet set.
func (s *Subscription) WorkerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workerName
}

// Subscribed reports whether SetSubscription has succeeded.
func (s *Subscription) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// Difficulty returns the last difficulty set via SetDifficulty.
func (s *Subscription) Difficulty() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

// Algorithm returns the algorithm this subscription is bound to.
func (s *Subscription) Algorithm() Algorithm { return s.algorithm }

// ID returns the pool-assigned subscription id, or "" if not yet
// subscribed.
func (s *Subscription) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// ExtraNonce1 returns the pool-assigned extranonce1, hex-encoded as it
// arrived on the wire.
func (s *Subscription) ExtraNonce1() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hex.EncodeToString(s.extraNonce1)
}

// ExtraNonce2Size returns the number of bytes a worker must use to
// encode extranonce2.
func (s *Subscription) ExtraNonce2Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extraNonce2Size
}
