package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/doraemonkeys/windsend-go/internal/clipboard"
	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/dispatch"
	"github.com/doraemonkeys/windsend-go/internal/handlers"
	"github.com/doraemonkeys/windsend-go/internal/notify"
	"github.com/doraemonkeys/windsend-go/internal/observability"
	"github.com/doraemonkeys/windsend-go/internal/ratelimit"
	"github.com/doraemonkeys/windsend-go/internal/relay"
	"github.com/doraemonkeys/windsend-go/internal/session"
	"github.com/doraemonkeys/windsend-go/internal/status"
	"github.com/doraemonkeys/windsend-go/internal/tlsutil"
	"github.com/doraemonkeys/windsend-go/internal/validation"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "configuration file path")
	tlsDir := flag.String("tls-dir", "./tls", "directory holding the generated CA and leaf certificate")
	observAddr := flag.String("observ-addr", "127.0.0.1:8081", "observability server address (metrics, health, pprof)")
	setSecret := flag.Bool("set-secret", false, "prompt for a new secret key and exit")
	setRelayPassword := flag.Bool("set-relay-password", false, "prompt for a new relay password and exit")
	flag.Parse()

	if err := validation.Addr(*observAddr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.NewLogger("windsend", "1.0.0", os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err, "failed to load configuration")
	}

	if *setSecret {
		if err := promptSecretKey(cfg); err != nil {
			logger.Fatal(err, "failed to set secret key")
		}
		return
	}
	if *setRelayPassword {
		if err := promptRelayPassword(cfg); err != nil {
			logger.Fatal(err, "failed to set relay password")
		}
		return
	}

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "windsend"); err == nil {
		defer shutdown(context.Background())
	} else {
		logger.Warn("tracing disabled: " + err.Error())
	}

	snap := cfg.Snapshot()
	if _, err := snap.SecretKey(); err != nil {
		logger.Fatal(err, "invalid secret key")
	}
	bundle, err := tlsutil.EnsureBundle(*tlsDir, snap.DeviceID)
	if err != nil {
		logger.Fatal(err, "failed to provision TLS bundle")
	}
	tlsConfig, err := bundle.ServerTLSConfig()
	if err != nil {
		logger.Fatal(err, "failed to build TLS config")
	}

	savePath, err := validation.FilePath(snap.SavePath, false)
	if err != nil {
		logger.Fatal(err, "invalid save path")
	}
	if err := os.MkdirAll(savePath, 0o700); err != nil {
		logger.Fatal(err, "failed to create save path")
	}

	clip := clipboard.NewDefault()
	notifier := notify.NewLogNotifier(logger)
	sessMgr := session.NewManager(clip, notifier, logger, metrics)
	hub := status.NewHub()

	svc := handlers.New(clip, notifier, sessMgr, cfg, hub, bundle, logger, metrics)
	allowSearch := func() bool { return cfg.Snapshot().AllowToBeSearchedOnce }
	dispatcher := dispatch.New(svc, cfg, logger, metrics, allowSearch)

	healthChecker.RegisterCheck("save_path", observability.SavePathCheck(savePath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenAddr := net.JoinHostPort("", strconv.Itoa(int(snap.ServerPort)))
	listener, err := tls.Listen("tcp", listenAddr, tlsConfig)
	if err != nil {
		logger.Fatal(err, "failed to start TLS listener")
	}
	logger.Info("TLS listener started on " + listenAddr)
	healthChecker.RegisterCheck("tls_listener", observability.TLSListenerCheck(listenAddr, true))

	var relayConnected atomic.Bool
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case connected := <-hub.RelayStatusChanged.C():
				relayConnected.Store(connected)
			}
		}
	}()

	relayClient := relay.New(cfg, dispatcher, tlsConfig, hub, logger, metrics)
	healthChecker.RegisterCheck("relay", func(ctx context.Context) observability.ComponentHealth {
		s := cfg.Snapshot()
		return observability.RelayCheck(s.EnableRelay, relayConnected.Load())(ctx)
	})
	go relayClient.Run(ctx)

	go startObservabilityServer(*observAddr, metrics, healthChecker, logger)

	tb := ratelimit.NewTokenBucket(50, 100)
	go acceptLoop(ctx, listener, listenAddr, tlsConfig, dispatcher, tb, logger, metrics)

	logger.Info("WindSend-S running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")
	cancel()
}

// wsaStartupRestart is the interval async_main waits before re-entering
// its accept loop after a WSAStartup-class accept failure (§4.3).
const wsaStartupRestart = 5 * time.Second

// acceptLoop drives listener until ctx is cancelled, rebinding on
// listenAddr/tlsConfig whenever an accept error carries the platform
// WSAStartup marker — that failure indicates the socket subsystem itself
// needs reinitializing, so the listener is discarded and rebuilt after a
// 5-second sleep rather than treated as a per-connection error.
func acceptLoop(ctx context.Context, listener net.Listener, listenAddr string, tlsConfig *tls.Config, dispatcher *dispatch.Dispatcher, tb *ratelimit.TokenBucket, logger *observability.Logger, metrics *observability.Metrics) {
	for {
		needsRestart := serveAccepts(ctx, listener, dispatcher, tb, logger, metrics)
		listener.Close()
		if !needsRestart {
			return
		}

		logger.Warn("WSAStartup accept error, reinitializing listener in " + wsaStartupRestart.String())
		timer := time.NewTimer(wsaStartupRestart)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, err := tls.Listen("tcp", listenAddr, tlsConfig)
		if err != nil {
			logger.Error(err, "failed to reinitialize TLS listener")
			return
		}
		listener = next
		logger.Info("TLS listener reinitialized on " + listenAddr)
	}
}

// serveAccepts runs the accept loop against listener. It returns false
// when ctx is cancelled (normal shutdown) and true when an accept error
// contains the WSAStartup marker, signalling the caller should rebuild
// the listener. No other accept error is fatal to the loop.
func serveAccepts(ctx context.Context, listener net.Listener, dispatcher *dispatch.Dispatcher, tb *ratelimit.TokenBucket, logger *observability.Logger, metrics *observability.Metrics) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if !tb.Allow(1) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			logger.Error(err, "failed to accept connection")
			metrics.ConnectionsTotal.WithLabelValues("accept_error").Inc()
			if strings.Contains(err.Error(), "WSAStartup") {
				return true
			}
			continue
		}
		metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
		metrics.ConnectionsActive.Inc()
		go func() {
			defer metrics.ConnectionsActive.Dec()
			defer conn.Close()
			if err := dispatcher.Serve(conn.(*tls.Conn)); err != nil {
				logger.Debug("connection closed: " + err.Error())
			}
		}()
	}
}

func startObservabilityServer(addr string, metrics *observability.Metrics, health *observability.HealthChecker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{Addr: addr, Handler: mux}
	logger.Info("observability server listening on " + addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}

func promptSecretKey(cfg *config.Store) error {
	fmt.Print("New secret key (leave empty to generate a random one): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}

	var keyHex string
	if len(raw) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return err
		}
		keyHex = hex.EncodeToString(key)
	} else {
		if _, err := hex.DecodeString(string(raw)); err != nil {
			return fmt.Errorf("secret key must be hex-encoded: %w", err)
		}
		keyHex = string(raw)
	}

	return cfg.Update(func(snap *config.Snapshot) {
		snap.SecretKeyHex = keyHex
	})
}

func promptRelayPassword(cfg *config.Store) error {
	fmt.Print("New relay password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}
	return cfg.Update(func(snap *config.Snapshot) {
		snap.RelaySecretKey = string(raw)
	})
}
