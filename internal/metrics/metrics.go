// Package metrics exposes the miner's session state as Prometheus
// metrics, following the gauge/counter layout the pool side of this
// codebase's sibling repositories use for their own exporters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Hashrate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightminer",
		Name:      "hashrate_hashes_per_second",
		Help:      "Current mining hashrate in hashes per second.",
	})

	Difficulty = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightminer",
		Name:      "difficulty",
		Help:      "Current pool-assigned difficulty.",
	})

	Subscribed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightminer",
		Name:      "subscribed",
		Help:      "1 if the session is subscribed to the pool, 0 otherwise.",
	})

	SharesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nightminer",
		Name:      "shares_accepted_total",
		Help:      "Total number of shares accepted by the pool.",
	})

	SharesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nightminer",
		Name:      "shares_rejected_total",
		Help:      "Total number of shares rejected by the pool.",
	})

	JobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nightminer",
		Name:      "jobs_started_total",
		Help:      "Total number of mining jobs started from mining.notify.",
	})
)

func init() {
	prometheus.MustRegister(Hashrate, Difficulty, Subscribed, SharesAccepted, SharesRejected, JobsStarted)
}

// Handler returns the HTTP handler that serves the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Reporter adapts the metrics package to stratum.Reporter.
type Reporter struct{}

func (Reporter) ShareAccepted()     { SharesAccepted.Inc() }
func (Reporter) ShareRejected()     { SharesRejected.Inc() }
func (Reporter) JobStarted(string)  { JobsStarted.Inc() }
func (Reporter) Hashrate(h float64) { Hashrate.Set(h) }
func (Reporter) Subscribed(ok bool) {
	if ok {
		Subscribed.Set(1)
	} else {
		Subscribed.Set(0)
	}
}
func (Reporter) Difficulty(d float64) { Difficulty.Set(d) }
