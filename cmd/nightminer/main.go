// Command nightminer is a CPU Stratum V1 miner speaking SHA-256d or
// scrypt proof of work to a single pool.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/nightminer/internal/metrics"
	"github.com/boomstarternetwork/nightminer/internal/statusapi"
	"github.com/boomstarternetwork/nightminer/internal/stratum"
)

const version = "NightMiner/0.1"

type options struct {
	URL        string `short:"o" long:"url" description:"stratum+tcp://host:port of the pool"`
	User       string `short:"u" long:"user" description:"worker username" default:""`
	Pass       string `short:"p" long:"pass" description:"worker password" default:""`
	UserPass   string `short:"O" long:"userpass" description:"user:pass, mutually exclusive with -u/-p"`
	Algo       string `short:"a" long:"algo" description:"scrypt or sha256d" default:"scrypt"`
	Background bool   `short:"B" long:"background" description:"run in the background"`
	Quiet      bool   `short:"q" long:"quiet" description:"suppress INFO level logging"`
	DumpProto  bool   `short:"P" long:"dump-protocol" description:"log raw protocol traffic"`
	Debug      bool   `short:"d" long:"debug" description:"enable DEBUG level logging"`
	Version    bool   `short:"v" long:"version" description:"print the version and exit"`

	NumWorkers  uint   `short:"n" long:"num-workers" description:"number of mining worker goroutines" default:"0"`
	MetricsAddr string `long:"metrics-addr" description:"listen address for the Prometheus /metrics endpoint; empty disables it"`
	StatusAddr  string `long:"status-addr" description:"listen address for the JSON /status endpoint; empty disables it"`
	LogFile     string `long:"log-file" description:"append-only log file path" default:"nightminer.log"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if opts.Version {
		fmt.Println(version)
		return
	}

	if opts.URL == "" {
		fmt.Fprintln(os.Stderr, "nightminer: -o/--url is required")
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	user, pass, err := resolveCredentials(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	algo, err := stratum.ParseAlgorithm(opts.Algo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.Background {
		daemonize()
		return
	}

	log := setupLogging(opts)

	numWorkers := opts.NumWorkers
	if numWorkers == 0 {
		numWorkers = uint(runtime.NumCPU())
	}

	addr := strings.TrimPrefix(opts.URL, "stratum+tcp://")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "9333")
	}

	reporter := metrics.Reporter{}
	m, err := stratum.NewMiner(stratum.Config{
		Addr:         addr,
		User:         user,
		Pass:         pass,
		Algorithm:    algo,
		NumWorkers:   numWorkers,
		UserAgent:    version,
		DumpProtocol: opts.DumpProto,
	}, log, reporter)
	if err != nil {
		log.WithError(err).Fatal("nightminer: could not build miner")
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(log, opts.MetricsAddr)
	}
	if opts.StatusAddr != "" {
		go serveStatus(log, opts.StatusAddr, m)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("nightminer: session ended")
	}
}

// resolveCredentials applies the mutually-exclusive -u/-p vs -O rule.
func resolveCredentials(opts options) (user, pass string, err error) {
	if opts.UserPass != "" {
		if opts.User != "" || opts.Pass != "" {
			return "", "", fmt.Errorf("nightminer: -O/--userpass is mutually exclusive with -u/-p")
		}
		for i := 0; i < len(opts.UserPass); i++ {
			if opts.UserPass[i] == ':' {
				return opts.UserPass[:i], opts.UserPass[i+1:], nil
			}
		}
		return "", "", fmt.Errorf("nightminer: -O/--userpass must be in user:pass form")
	}
	return opts.User, opts.Pass, nil
}

func setupLogging(opts options) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	file, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		logger.SetOutput(file)
	}

	switch {
	case opts.Debug, opts.DumpProto:
		logger.SetLevel(logrus.DebugLevel)
	case opts.Quiet:
		logger.SetLevel(logrus.WarnLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logrus.NewEntry(logger)
}

func serveMetrics(log *logrus.Entry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("nightminer: metrics server stopped")
	}
}

func serveStatus(log *logrus.Entry, addr string, m *stratum.Miner) {
	engine := statusapi.NewEngine(m)
	if err := http.ListenAndServe(addr, engine); err != nil {
		log.WithError(err).Error("nightminer: status server stopped")
	}
}

// daemonize re-execs the process detached from the controlling terminal.
// Go has no fork(); the closest idiomatic equivalent is re-exec with a
// new session, matching the intent of the original's double os.fork().
func daemonize() {
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "-B" && a != "--background" {
			args = append(args, a)
		}
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "nightminer: could not background:", err)
		os.Exit(1)
	}
}
