package diagnostics

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	// The profiling endpoints are registered on http.DefaultServeMux.
	_ "net/http/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/buildbarn/bb-atomic128/pkg/program"
	"github.com/buildbarn/bb-atomic128/pkg/util"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Configuration of the diagnostics HTTP server.
type Configuration struct {
	// Address on which to listen (e.g., ":9980").
	ListenAddress string `json:"listenAddress"`

	// Expose Prometheus metrics at /metrics.
	EnablePrometheus bool `json:"enablePrometheus"`

	// Expose Go's profiling endpoints at /debug/pprof/.
	EnablePprof bool `json:"enablePprof"`

	// Amount of time to keep retrying if the listen address is
	// still in use, using Go's duration syntax (e.g., "10s"). This
	// happens when a previous instance has not terminated yet. When
	// left empty, startup fails immediately.
	ListenRetryTimeout string `json:"listenRetryTimeout"`
}

// Server is a web server that exposes health checks, Prometheus
// metrics and profiling endpoints of the current process. It reports
// being healthy, and becomes ready once Run() has bound its listen
// address.
type Server struct {
	listenAddress      string
	listenRetryTimeout time.Duration
	ready              atomic.Bool
	router             *mux.Router
}

// NewServer creates a diagnostics web server. It does not start
// listening until Run() is called.
func NewServer(configuration *Configuration) (*Server, error) {
	var listenRetryTimeout time.Duration
	if configuration.ListenRetryTimeout != "" {
		d, err := time.ParseDuration(configuration.ListenRetryTimeout)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "Invalid listen retry timeout: %s", err)
		}
		if d < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "Listen retry timeout must be non-negative, while %s was provided", d)
		}
		listenRetryTimeout = d
	}

	s := &Server{
		listenAddress:      configuration.ListenAddress,
		listenRetryTimeout: listenRetryTimeout,
		router:             mux.NewRouter(),
	}
	s.router.HandleFunc("/-/healthy", func(http.ResponseWriter, *http.Request) {})
	s.router.HandleFunc("/-/ready", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
	if configuration.EnablePrometheus {
		s.router.Handle("/metrics", promhttp.Handler())
	}
	if configuration.EnablePprof {
		s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	}
	return s, nil
}

// SetReady updates the health probe to report healthy and ready.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

// SetNotServing updates the health probe to report healthy but not ready.
func (s *Server) SetNotServing() {
	s.ready.Store(false)
}

// ServeHTTP handles a single request against the diagnostics
// endpoints, without requiring the server to listen.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run the diagnostics web server until the provided context is
// canceled. It can be launched as a program.Routine. It should
// typically be launched as a dependency of the routines it reports
// on, so that metrics remain available until these have terminated.
func (s *Server) Run(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
	listener, err := s.listen(ctx)
	if err != nil {
		return util.StatusWrapf(err, "Failed to create listening socket for %#v", s.listenAddress)
	}
	s.SetReady()
	return s.serve(ctx, listener)
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if s.listenRetryTimeout > 0 {
		exponentialBackOff := backoff.NewExponentialBackOff()
		exponentialBackOff.MaxElapsedTime = s.listenRetryTimeout
		b = exponentialBackOff
	}

	var listener net.Listener
	err := backoff.RetryNotify(
		func() error {
			l, err := net.Listen("tcp", s.listenAddress)
			if err != nil {
				if errors.Is(err, syscall.EADDRINUSE) {
					return err
				}
				return backoff.Permanent(err)
			}
			listener = l
			return nil
		},
		backoff.WithContext(b, ctx),
		func(err error, delay time.Duration) {
			log.Printf("Diagnostics server: %s. Retrying in %s.", err, delay)
		})
	return listener, err
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{Handler: s.router}
	go func() {
		<-ctx.Done()
		s.SetNotServing()
		server.Close()
	}()
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return util.StatusWrap(err, "Diagnostics server")
	}
	return nil
}
