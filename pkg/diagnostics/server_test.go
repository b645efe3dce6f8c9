package diagnostics_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildbarn/bb-atomic128/pkg/diagnostics"
	"github.com/buildbarn/bb-atomic128/pkg/program"
	"github.com/buildbarn/bb-atomic128/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newServer(t *testing.T, configuration *diagnostics.Configuration) *diagnostics.Server {
	server, err := diagnostics.NewServer(configuration)
	require.NoError(t, err)
	return server
}

func get(t *testing.T, handler http.Handler, path string) *http.Response {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Result()
}

func TestNewServer(t *testing.T) {
	t.Run("InvalidListenRetryTimeout", func(t *testing.T) {
		_, err := diagnostics.NewServer(&diagnostics.Configuration{ListenRetryTimeout: "soon"})
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Invalid listen retry timeout: time: invalid duration \"soon\""), err)
	})

	t.Run("NegativeListenRetryTimeout", func(t *testing.T) {
		_, err := diagnostics.NewServer(&diagnostics.Configuration{ListenRetryTimeout: "-1s"})
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Listen retry timeout must be non-negative, while -1s was provided"), err)
	})
}

func TestServerEndpoints(t *testing.T) {
	t.Run("Minimal", func(t *testing.T) {
		server := newServer(t, &diagnostics.Configuration{})

		require.Equal(t, http.StatusOK, get(t, server, "/-/healthy").StatusCode)
		require.Equal(t, http.StatusServiceUnavailable, get(t, server, "/-/ready").StatusCode)
		require.Equal(t, http.StatusNotFound, get(t, server, "/metrics").StatusCode)
		require.Equal(t, http.StatusNotFound, get(t, server, "/debug/pprof/").StatusCode)
	})

	t.Run("Readiness", func(t *testing.T) {
		server := newServer(t, &diagnostics.Configuration{})

		server.SetReady()
		require.Equal(t, http.StatusOK, get(t, server, "/-/ready").StatusCode)
		server.SetNotServing()
		require.Equal(t, http.StatusServiceUnavailable, get(t, server, "/-/ready").StatusCode)
	})

	t.Run("Prometheus", func(t *testing.T) {
		server := newServer(t, &diagnostics.Configuration{EnablePrometheus: true})

		response := get(t, server, "/metrics")
		require.Equal(t, http.StatusOK, response.StatusCode)
		body, err := io.ReadAll(response.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "go_goroutines")
	})

	t.Run("Pprof", func(t *testing.T) {
		server := newServer(t, &diagnostics.Configuration{EnablePprof: true})

		require.Equal(t, http.StatusOK, get(t, server, "/debug/pprof/").StatusCode)
	})
}

func TestServerRun(t *testing.T) {
	t.Run("InvalidListenAddress", func(t *testing.T) {
		// Errors other than the address being in use are not
		// retried.
		server := newServer(t, &diagnostics.Configuration{
			ListenAddress:      "localhost:-1",
			ListenRetryTimeout: "1h",
		})

		require.ErrorContains(t, program.RunLocal(context.Background(), server.Run), "Failed to create listening socket for \"localhost:-1\"")
	})

	t.Run("AddressInUse", func(t *testing.T) {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer occupied.Close()

		server := newServer(t, &diagnostics.Configuration{ListenAddress: occupied.Addr().String()})
		require.ErrorContains(t, program.RunLocal(context.Background(), server.Run), "address already in use")
	})

	t.Run("RetryUntilAddressAvailable", func(t *testing.T) {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		address := occupied.Addr().String()

		server := newServer(t, &diagnostics.Configuration{
			ListenAddress:      address,
			ListenRetryTimeout: "1m",
		})

		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() {
			errs <- program.RunLocal(ctx, server.Run)
		}()

		// The server may not report being ready while it is
		// still waiting for the address to become available.
		time.Sleep(100 * time.Millisecond)
		require.Equal(t, http.StatusServiceUnavailable, get(t, server, "/-/ready").StatusCode)
		require.NoError(t, occupied.Close())

		require.Eventually(t, func() bool {
			response, err := http.Get("http://" + address + "/-/ready")
			if err != nil {
				return false
			}
			response.Body.Close()
			return response.StatusCode == http.StatusOK
		}, 30*time.Second, 50*time.Millisecond)

		cancel()
		require.NoError(t, <-errs)
	})

	t.Run("NotReadyAfterListenFailure", func(t *testing.T) {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer occupied.Close()

		server := newServer(t, &diagnostics.Configuration{ListenAddress: occupied.Addr().String()})
		require.Error(t, program.RunLocal(context.Background(), server.Run))
		require.Equal(t, http.StatusServiceUnavailable, get(t, server, "/-/ready").StatusCode)
	})

	t.Run("StopsOnCancellation", func(t *testing.T) {
		server := newServer(t, &diagnostics.Configuration{ListenAddress: "127.0.0.1:0"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, program.RunLocal(ctx, server.Run))
		require.Equal(t, http.StatusServiceUnavailable, get(t, server, "/-/ready").StatusCode)
	})
}
