package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/sitekeeper/internal/client/api"
	"github.com/iudanet/sitekeeper/internal/client/engine"
	clientfeed "github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/internal/server/config"
	"github.com/iudanet/sitekeeper/internal/server/storage/sqlite"
	pkgapi "github.com/iudanet/sitekeeper/pkg/api"
)

const (
	testOperator = "editor"
	testPassword = "correct horse battery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	srv   *Server
	http  *httptest.Server
	store *sqlite.Storage
}

func setupServer(t *testing.T) *testServer {
	ctx := context.Background()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, EnsureOperator(ctx, store, testOperator, testPassword, testLogger()))

	cfg := config.Defaults()
	cfg.PingInterval = time.Second
	cfg.LoginRateLimit = 3

	srv := New(cfg, store, []byte("test-secret"), "test", testLogger())
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.stop()
		httpServer.Close()
	})

	return &testServer{srv: srv, http: httpServer, store: store}
}

func (ts *testServer) login(t *testing.T) *api.Client {
	client := api.NewClient(ts.http.URL)
	resp, err := client.Login(context.Background(), pkgapi.LoginRequest{Username: testOperator, Password: testPassword})
	require.NoError(t, err)
	client.SetToken(resp.AccessToken)
	return client
}

func (ts *testServer) startEngine(t *testing.T, client *api.Client, topic string) *engine.Engine {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport := clientfeed.NewWebSocketTransport(ts.http.URL, client.Token, testLogger())
	cfg := engine.DefaultConfig()
	cfg.Backoff = clientfeed.BackoffConfig{Base: 20 * time.Millisecond, Max: 100 * time.Millisecond}

	eng := engine.New(client, transport, cfg, testLogger())
	eng.Start(ctx)
	t.Cleanup(eng.Close)

	require.NoError(t, eng.Watch(ctx, topic, nil))
	require.Eventually(t, func() bool {
		return eng.ConnectionStatus() == engine.StatusConnected
	}, 5*time.Second, 10*time.Millisecond)

	return eng
}

func TestServer_ContentRoundTrip(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()
	client := ts.login(t)

	rec := models.NewRecord("home", "hero")
	rec.Fields["title"] = "Hello"
	rec.Nested["features"] = []models.Item{{"title": "Fast"}}

	version, err := client.Write(ctx, rec, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	got, err := client.Read(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Fields["title"])
	assert.Equal(t, "Fast", got.Nested["features"][0]["title"])

	_, err = client.Write(ctx, rec, 0)
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	version, err = client.Delete(ctx, "hero", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	_, err = client.Read(ctx, "hero")
	assert.ErrorIs(t, err, models.ErrNotFound)

	records, err := client.ReadAll(ctx, "home")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServer_RequiresToken(t *testing.T) {
	ts := setupServer(t)
	client := api.NewClient(ts.http.URL)

	_, err := client.ReadAll(context.Background(), "home")
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestServer_LoginRateLimit(t *testing.T) {
	ts := setupServer(t)
	client := api.NewClient(ts.http.URL)

	for i := 0; i < 3; i++ {
		_, err := client.Login(context.Background(), pkgapi.LoginRequest{Username: testOperator, Password: "wrong password"})
		assert.ErrorIs(t, err, api.ErrUnauthorized)
	}

	_, err := client.Login(context.Background(), pkgapi.LoginRequest{Username: testOperator, Password: testPassword})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestServer_LiveReconciliationBetweenConsoles(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()

	alice := ts.login(t)
	bob := ts.login(t)

	seed := models.NewRecord("home", "hero")
	seed.Fields["title"] = "Old"
	seed.Fields["subtitle"] = "Sub"
	_, err := alice.Write(ctx, seed, 0)
	require.NoError(t, err)

	aliceEngine := ts.startEngine(t, alice, "home")
	bobEngine := ts.startEngine(t, bob, "home")

	for _, eng := range []*engine.Engine{aliceEngine, bobEngine} {
		require.Eventually(t, func() bool {
			rec, err := eng.Get(ctx, "hero")
			return err == nil && rec.Version == 1
		}, 5*time.Second, 10*time.Millisecond)
	}

	// Боб начинает редактирование, Алиса сохраняет раньше
	_, err = bobEngine.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, bobEngine.UpdateField(ctx, "hero", "title", "Bob title"))

	_, err = aliceEngine.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, aliceEngine.UpdateField(ctx, "hero", "subtitle", "Alice subtitle"))
	res, err := aliceEngine.Save(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)
	assert.False(t, res.Unconfirmed)

	// Изменение Алисы доходит до Боба через ленту, черновик Боба не трогается
	require.Eventually(t, func() bool {
		sess, err := bobEngine.Session(ctx, "hero")
		return err == nil && sess.Staged != nil
	}, 5*time.Second, 10*time.Millisecond)

	_, err = bobEngine.Save(ctx, "hero")
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	require.NoError(t, bobEngine.Rebase(ctx, "hero"))
	res, err = bobEngine.Save(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Version)

	stored, err := ts.store.GetRecord(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Bob title", stored.Fields["title"])
	assert.Equal(t, "Alice subtitle", stored.Fields["subtitle"])

	require.Eventually(t, func() bool {
		rec, err := aliceEngine.Get(ctx, "hero")
		return err == nil && rec.Version == 3 && rec.Fields["title"] == "Bob title"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_ServeGracefulShutdown(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Defaults()
	cfg.LoginRateLimit = 0
	cfg.ShutdownTimeout = 2 * time.Second
	srv := New(cfg, store, []byte("secret"), "test", testLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	errC := make(chan error, 1)
	go func() { errC <- srv.Serve(runCtx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Nil(t, srv.Hub().Subscribe("home"), "hub must be closed after shutdown")
}
