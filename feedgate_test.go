package feedgate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotelab/feedgate"
	"github.com/quotelab/feedgate/config"
	"github.com/quotelab/feedgate/marketdata"
	"github.com/quotelab/feedgate/provider"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig keeps tests quiet and failover fast.
func testConfig() *feedgate.Config {
	cfg := &feedgate.Config{}
	cfg.Name = "feedgate-test"
	cfg.Logging.Level = "error"
	cfg.Server.Mode = gin.TestMode
	cfg.Server.Port = 0
	cfg.Registry.RetryDelay = "1ms"
	return cfg
}

func mustNew(t *testing.T, opts ...feedgate.Option) *feedgate.App {
	t.Helper()
	app, err := feedgate.New(testConfig(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

type quoteProvider struct {
	quotes marketdata.QuoteSet
	err    error
	calls  int
}

func (p *quoteProvider) FetchQuotes(_ context.Context, req marketdata.QuoteRequest) (marketdata.QuoteSet, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(marketdata.QuoteSet, len(req.Symbols))
	for _, s := range req.Symbols {
		if q, ok := p.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func marketQuotes(symbols ...string) marketdata.QuoteSet {
	set := make(marketdata.QuoteSet, len(symbols))
	for i, s := range symbols {
		set[s] = marketdata.Quote{
			Symbol:    s,
			Price:     float64(100 * (i + 1)),
			Volume24h: 1000,
			UpdatedAt: time.Now(),
		}
	}
	return set
}

func getJSON(t *testing.T, app *feedgate.App, target string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", target, http.NoBody))

	var body map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad JSON from %s: %v: %s", target, err, rr.Body.String())
		}
	}
	return rr.Code, body
}

func payload(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	return d
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &feedgate.Config{}
	cfg.ApplyDefaults()

	if cfg.Name != "feedgate" {
		t.Errorf("Name = %q, want feedgate", cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.Registry.Capability != marketdata.Capability {
		t.Errorf("Registry.Capability = %q, want %q", cfg.Registry.Capability, marketdata.Capability)
	}
	if cfg.Registry.AuditThrottle != "1s" {
		t.Errorf("Registry.AuditThrottle = %q, want 1s", cfg.Registry.AuditThrottle)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Redis.KeyPrefix != "feedgate" {
		t.Errorf("Cache.Redis.KeyPrefix = %q, want feedgate", cfg.Cache.Redis.KeyPrefix)
	}
	if cfg.Observability.Endpoint != "localhost:4318" || !cfg.Observability.Insecure {
		t.Errorf("unexpected observability defaults: %+v", cfg.Observability)
	}
	if cfg.Observability.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.Observability.SampleRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*feedgate.Config)
		wantErr bool
	}{
		{"defaults", func(*feedgate.Config) {}, false},
		{"bad environment", func(c *feedgate.Config) { c.Environment = "mars" }, true},
		{"bad retry delay", func(c *feedgate.Config) { c.Registry.RetryDelay = "soon" }, true},
		{"threshold above one", func(c *feedgate.Config) { c.Registry.HealthThreshold = 1.5 }, true},
		{"negative cache max age", func(c *feedgate.Config) { c.Cache.MaxAge = "-5s" }, true},
		{"bad server mode", func(c *feedgate.Config) { c.Server.Mode = "verbose" }, true},
		{"bad metrics interval", func(c *feedgate.Config) {
			c.Observability.Enabled = true
			c.Observability.MetricsInterval = "often"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &feedgate.Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feedgate.yml")
	yaml := "name: quotes-svc\nserver:\n  port: 9100\nregistry:\n  max_attempts: 5\n"
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := feedgate.LoadConfig(
		config.WithConfigFile(file),
		config.WithEnvFile(filepath.Join(dir, ".env.absent")),
	)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Name != "quotes-svc" {
		t.Errorf("Name = %q, want quotes-svc", cfg.Name)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Registry.MaxAttempts != 5 {
		t.Errorf("Registry.MaxAttempts = %d, want 5", cfg.Registry.MaxAttempts)
	}
	// Defaults still fill the gaps.
	if cfg.Registry.Capability != marketdata.Capability {
		t.Errorf("Capability = %q, want default", cfg.Registry.Capability)
	}
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

func TestNewWiresHandles(t *testing.T) {
	app := mustNew(t)

	if app.Registry == nil || app.Service == nil || app.Server == nil || app.Events == nil || app.Components == nil {
		t.Fatalf("incomplete app: %+v", app)
	}

	for _, name := range []string{"events", "registry", "http-server"} {
		if app.Components.Get(name) == nil {
			t.Errorf("component %q not registered", name)
		}
	}
	if app.Components.Get("cache") != nil {
		t.Error("cache component should only exist with Redis enabled")
	}
	if app.Components.Get("telemetry") != nil {
		t.Error("telemetry component should only exist when observability is enabled")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "mars"

	if _, err := feedgate.New(cfg); err == nil {
		t.Fatal("expected config validation error")
	}
}

// ---------------------------------------------------------------------------
// Quote flow through the HTTP surface
// ---------------------------------------------------------------------------

func TestQuoteFlowLiveThenCache(t *testing.T) {
	app := mustNew(t)
	alpha := &quoteProvider{quotes: marketQuotes("BTC", "ETH")}
	if err := app.Registry.Register("alpha", alpha, provider.DefaultConfig()); err != nil {
		t.Fatalf("register: %v", err)
	}

	code, body := getJSON(t, app, "/v1/quotes?symbols=btc,eth")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	d := payload(t, body)
	if d["source"] != "live" || d["provider"] != "alpha" {
		t.Errorf("first hit: source=%v provider=%v, want live via alpha", d["source"], d["provider"])
	}
	quotes := d["quotes"].(map[string]any)
	if _, ok := quotes["BTC"]; !ok {
		t.Errorf("symbols should be canonicalized upper-case: %v", quotes)
	}

	// Same request is now answered from cache without touching the provider.
	_, body = getJSON(t, app, "/v1/quotes?symbols=btc,eth")
	if d := payload(t, body); d["source"] != "cache" {
		t.Errorf("second hit: source = %v, want cache", d["source"])
	}
	if alpha.calls != 1 {
		t.Errorf("provider called %d times, want 1", alpha.calls)
	}

	// refresh=true bypasses the cache.
	_, body = getJSON(t, app, "/v1/quotes?symbols=btc,eth&refresh=true")
	if d := payload(t, body); d["source"] != "live" {
		t.Errorf("forced refresh: source = %v, want live", d["source"])
	}
	if alpha.calls != 2 {
		t.Errorf("provider called %d times after refresh, want 2", alpha.calls)
	}
}

func TestQuoteFailover(t *testing.T) {
	app := mustNew(t)
	alpha := &quoteProvider{err: errors.New("upstream flaked")}
	beta := &quoteProvider{quotes: marketQuotes("BTC")}

	if err := app.Registry.Register("alpha", alpha, provider.Config{Priority: 10, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := app.Registry.Register("beta", beta, provider.Config{Priority: 5, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	code, body := getJSON(t, app, "/v1/quotes?symbols=BTC")
	if code != http.StatusOK {
		t.Fatalf("expected 200 after failover, got %d: %v", code, body)
	}
	d := payload(t, body)
	if d["provider"] != "beta" {
		t.Errorf("provider = %v, want beta", d["provider"])
	}
	if d["attempts"] != float64(2) {
		t.Errorf("attempts = %v, want 2", d["attempts"])
	}
	if alpha.calls != 1 || beta.calls != 1 {
		t.Errorf("calls alpha=%d beta=%d, want 1 each", alpha.calls, beta.calls)
	}

	// The failure shows up in the provider stats.
	code, body = getJSON(t, app, "/v1/providers/alpha")
	if code != http.StatusOK {
		t.Fatalf("provider stats: got %d", code)
	}
	d = payload(t, body)
	if d["failure_count"] != float64(1) {
		t.Errorf("failure_count = %v, want 1", d["failure_count"])
	}
	if d["eligible"] != false {
		t.Errorf("a fully failed provider should be ineligible, got %v", d["eligible"])
	}

	code, body = getJSON(t, app, "/v1/providers")
	if code != http.StatusOK {
		t.Fatalf("provider list: got %d", code)
	}
	if providers := payload(t, body)["providers"].([]any); len(providers) != 2 {
		t.Errorf("listed %d providers, want 2", len(providers))
	}
}

type syntheticSource struct{}

func (syntheticSource) Generate(_ context.Context, req marketdata.QuoteRequest) (marketdata.QuoteSet, error) {
	return marketQuotes(req.Symbols...), nil
}

func TestFallbackServesWhenPoolIsEmpty(t *testing.T) {
	app := mustNew(t, feedgate.WithFallback(syntheticSource{}))

	code, body := getJSON(t, app, "/v1/quotes?symbols=BTC")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from fallback, got %d: %v", code, body)
	}
	d := payload(t, body)
	if d["source"] != "fallback" {
		t.Errorf("source = %v, want fallback", d["source"])
	}
	if d["stale"] != true {
		t.Error("fallback results must be flagged stale")
	}
}

func TestEmptyPoolWithoutFallbackIs503(t *testing.T) {
	app := mustNew(t)

	code, body := getJSON(t, app, "/v1/quotes?symbols=BTC")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %v", code, body)
	}
	errBody, ok := body["error"].(map[string]any)
	if !ok || errBody["code"] != "NO_AVAILABLE_PROVIDERS" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestAdminRoutesLockedWithoutCredentials(t *testing.T) {
	app := mustNew(t)
	if err := app.Registry.Register("alpha", &quoteProvider{quotes: marketQuotes("BTC")}, provider.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(rr, httptest.NewRequest("POST", "/v1/providers/alpha/disable", http.NoBody))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no admin credentials, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestAppLifecycle(t *testing.T) {
	app := mustNew(t)
	if err := app.Registry.Register("alpha", &quoteProvider{quotes: marketQuotes("BTC")}, provider.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if app.Events.Hub().Stopped() {
		t.Error("event hub should be running after Start")
	}

	code, _ := getJSON(t, app, "/health")
	if code != http.StatusOK {
		t.Errorf("/health = %d, want 200", code)
	}

	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if !app.Events.Hub().Stopped() {
		t.Error("event hub should be stopped after Shutdown")
	}

	// Second shutdown is a no-op.
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("repeated Shutdown() failed: %v", err)
	}
}

func TestWaitForSignalHonorsContext(t *testing.T) {
	app := mustNew(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan os.Signal, 1)
	go func() { done <- app.WaitForSignal(ctx) }()

	select {
	case sig := <-done:
		if sig != nil {
			t.Errorf("expected nil signal on context cancel, got %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSignal did not return on context cancel")
	}
}
