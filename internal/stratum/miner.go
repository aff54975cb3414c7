package stratum

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/nightminer/internal/xendian"
)

const (
	methodSubscribe     = "mining.subscribe"
	methodAuthorize     = "mining.authorize"
	methodSubmit        = "mining.submit"
	methodNotify        = "mining.notify"
	methodSetDifficulty = "mining.set_difficulty"
)

// Config carries everything needed to run one mining session.
type Config struct {
	Addr         string
	User         string
	Pass         string
	Algorithm    Algorithm
	NumWorkers   uint
	UserAgent    string
	DumpProtocol bool
}

// Reporter receives live updates for external consumers such as a
// metrics exporter or a status API; all methods must be safe to call
// from the dispatch goroutine and must not block.
type Reporter interface {
	ShareAccepted()
	ShareRejected()
	JobStarted(jobID string)
	Hashrate(h float64)
	Subscribed(subscribed bool)
	Difficulty(d float64)
}

// Stats is a point-in-time snapshot of a Miner's session state.
type Stats struct {
	Subscribed     bool    `json:"subscribed"`
	WorkerName     string  `json:"worker_name"`
	Difficulty     float64 `json:"difficulty"`
	CurrentJobID   string  `json:"current_job_id"`
	Hashrate       float64 `json:"hashrate"`
	AcceptedShares uint64  `json:"accepted_shares"`
	RejectedShares uint64  `json:"rejected_shares"`
}

// Miner orchestrates one Stratum session: connect, subscribe, authorize,
// then forever dispatch server notifications and run the current Job.
type Miner struct {
	cfg          Config
	log          *logrus.Entry
	client       *Client
	subscription *Subscription
	reporter     Reporter

	mu  sync.Mutex
	job *Job

	acceptedShares atomic.Uint64
	rejectedShares atomic.Uint64
}

// NewMiner builds a Miner for the given configuration. reporter may be
// nil, in which case updates are simply not published anywhere.
func NewMiner(cfg Config, log *logrus.Entry, reporter Reporter) (*Miner, error) {
	sub, err := NewSubscription(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &Miner{
		cfg:          cfg,
		log:          log,
		subscription: sub,
		reporter:     reporter,
	}, nil
}

// Run dials the pool, subscribes, and serves the session until ctx is
// canceled or a fatal protocol error occurs.
func (m *Miner) Run(ctx context.Context) error {
	conn, err := net.Dial("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("stratum: dial %s: %w", m.cfg.Addr, err)
	}
	defer conn.Close()

	m.client = NewClient(conn, m.log)
	m.client.DumpProtocol = m.cfg.DumpProtocol

	serveErr := make(chan error, 1)
	go func() { serveErr <- m.client.Serve(m) }()

	if _, err := m.client.Send(methodSubscribe, m.cfg.UserAgent); err != nil {
		return fmt.Errorf("stratum: subscribe: %w", err)
	}

	select {
	case <-ctx.Done():
		m.client.Close()
		<-serveErr
		return ctx.Err()
	case err := <-serveErr:
		return err
	}
}

// HandleNotify implements Handler for server-initiated notifications.
func (m *Miner) HandleNotify(method string, params json.RawMessage) error {
	switch method {
	case methodSetDifficulty:
		var args []float64
		if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 {
			m.log.WithError(err).Warn("stratum: malformed set_difficulty params")
			return nil
		}
		if err := m.subscription.SetDifficulty(args[0]); err != nil {
			m.log.WithError(err).Warn("stratum: set_difficulty rejected")
			return nil
		}
		m.reporter.Difficulty(args[0])
		return nil

	case methodNotify:
		var args []interface{}
		if err := json.Unmarshal(params, &args); err != nil || len(args) != 9 {
			m.log.WithError(err).Warn("stratum: malformed notify params")
			return nil
		}
		tpl, err := parseNotifyParams(args)
		if err != nil {
			m.log.WithError(err).Warn("stratum: malformed notify params")
			return nil
		}
		m.spawnJob(tpl)
		return nil

	default:
		m.log.WithField("method", method).Warn("stratum: unsupported notification")
		return nil
	}
}

// HandleReply implements Handler for replies to requests this Miner
// sent.
func (m *Miner) HandleReply(req pendingRequest, result json.RawMessage, rpcErr *RPCError) error {
	switch req.method {
	case methodSubscribe:
		if rpcErr != nil {
			return fmt.Errorf("%w: %s", ErrMalformedSubscribeReply, rpcErr)
		}
		id, extraNonce1, extraNonce2Size, err := parseSubscribeResult(result)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSubscribeReply, err)
		}
		if err := m.subscription.SetSubscription(id, extraNonce1, extraNonce2Size); err != nil {
			return err
		}
		m.reporter.Subscribed(true)
		if _, err := m.client.Send(methodAuthorize, m.cfg.User, m.cfg.Pass); err != nil {
			return fmt.Errorf("stratum: authorize: %w", err)
		}
		return nil

	case methodAuthorize:
		var ok bool
		if rpcErr == nil {
			_ = json.Unmarshal(result, &ok)
		}
		if rpcErr != nil || !ok {
			return ErrAuthenticationFailed
		}
		if err := m.subscription.SetWorkerName(m.cfg.User); err != nil {
			m.log.WithError(err).Warn("stratum: set worker name rejected")
		}
		m.log.Info("stratum: authorized")
		return nil

	case methodSubmit:
		var ok bool
		if rpcErr == nil {
			_ = json.Unmarshal(result, &ok)
		}
		if rpcErr != nil || !ok {
			m.rejectedShares.Add(1)
			m.reporter.ShareRejected()
			m.log.WithField("error", rpcErr).Warn("stratum: share rejected")
			return nil
		}
		m.acceptedShares.Add(1)
		m.reporter.ShareAccepted()
		m.log.Debug("stratum: share accepted")
		return nil

	default:
		m.log.WithField("method", req.method).Warn("stratum: reply to unrecognized method")
		return nil
	}
}

// spawnJob stops the current job, if any, and starts mining the new
// template.
func (m *Miner) spawnJob(tpl NotifyParams) {
	m.mu.Lock()
	prev := m.job
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
		m.log.WithFields(logrus.Fields{
			"job_id":   prev.ID(),
			"hashrate": xendian.HumanReadableHashrate(prev.Hashrate()),
		}).Info("stratum: job superseded")
	}

	job, err := m.subscription.CreateJob(tpl)
	if err != nil {
		m.log.WithError(err).Warn("stratum: could not create job")
		return
	}

	m.mu.Lock()
	m.job = job
	m.mu.Unlock()

	m.reporter.JobStarted(job.ID())
	shares := job.Mine(m.cfg.NumWorkers)
	go m.runJob(job, shares)
}

// runJob submits every share the job produces and reports the final
// hashrate once it stops producing them.
func (m *Miner) runJob(job *Job, shares <-chan Share) {
	for share := range shares {
		workerName := m.subscription.WorkerName()
		if _, err := m.client.Send(methodSubmit, workerName, share.JobID, share.ExtraNonce2, share.Ntime, share.Nonce); err != nil {
			m.log.WithError(err).Warn("stratum: submit failed")
		}
	}
	hashrate := job.Hashrate()
	m.reporter.Hashrate(hashrate)
	m.log.WithFields(logrus.Fields{
		"job_id":   job.ID(),
		"hashrate": xendian.HumanReadableHashrate(hashrate),
	}).Info("stratum: job finished")
}

// Snapshot returns the Miner's current state for status reporting.
func (m *Miner) Snapshot() Stats {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()

	var jobID string
	var hashrate float64
	if job != nil {
		jobID = job.ID()
		hashrate = job.Hashrate()
	}

	return Stats{
		Subscribed:     m.subscription.Subscribed(),
		WorkerName:     m.subscription.WorkerName(),
		Difficulty:     m.subscription.Difficulty(),
		CurrentJobID:   jobID,
		Hashrate:       hashrate,
		AcceptedShares: m.acceptedShares.Load(),
		RejectedShares: m.rejectedShares.Load(),
	}
}

type noopReporter struct{}

func (noopReporter) ShareAccepted()     {}
func (noopReporter) ShareRejected()     {}
func (noopReporter) JobStarted(string)  {}
func (noopReporter) Hashrate(float64)   {}
func (noopReporter) Subscribed(bool)    {}
func (noopReporter) Difficulty(float64) {}
