package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/config"
	"github.com/agentstation/recon/internal/jobstore"
	"github.com/agentstation/recon/pkg/logging"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, a *App, args ...string) (string, error) {
	t.Helper()
	root := a.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil before load")
	}
	if app.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
}

// TestApp_WithConfigNil verifies that a nil config is rejected.
func TestApp_WithConfigNil(t *testing.T) {
	if _, err := New("dev", "", "", "", WithConfig(nil)); err == nil {
		t.Fatal("New(WithConfig(nil)) succeeded, want error")
	}
}

// TestApp_Engine_Singleton verifies that Engine() returns the same instance
// under concurrent access.
func TestApp_Engine_Singleton(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test",
		WithConfig(config.Default()), WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	const n = 10
	engines := make([]recon.Engine, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := app.Engine()
			if err != nil {
				t.Errorf("Engine() failed: %v", err)
				return
			}
			engines[i] = e
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if engines[i] != engines[0] {
			t.Fatal("Engine() returned different instances")
		}
	}
}

// TestApp_Engine_BadStore verifies that store errors surface from Engine().
func TestApp_Engine_BadStore(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Store.Driver = jobstore.DriverSQLite
	cfg.Store.Path = filepath.Join(blocker, "jobs.db")

	app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := app.Engine(); err == nil {
		t.Fatal("Engine() succeeded with an unusable store path")
	}
}

// TestApp_Shutdown verifies shutdown without an engine is a no-op.
func TestApp_Shutdown(t *testing.T) {
	app, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}

// TestExecute_Version verifies the root command wiring and format flag.
func TestExecute_Version(t *testing.T) {
	isolate(t)
	app, err := New("1.2.3", "abc", "today", "ci")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	out, err := execute(t, app, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var info struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" {
		t.Errorf("version output = %+v", info)
	}
}

// TestExecute_InvalidFormat verifies format validation runs before commands.
func TestExecute_InvalidFormat(t *testing.T) {
	isolate(t)
	app, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := execute(t, app, "version", "-o", "xml"); err == nil {
		t.Fatal("expected error for --format xml")
	}
}

// TestExecute_ConfigFile verifies --config is read before the command runs.
func TestExecute_ConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "recon.yaml")
	body := "engine:\n  default_similarity_threshold: 0.65\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	app, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := execute(t, app, "--config", path, "version", "-o", "json"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	cfg := app.Config()
	if cfg.Engine.DefaultMatchThreshold != 0.65 {
		t.Errorf("DefaultMatchThreshold = %v, want 0.65", cfg.Engine.DefaultMatchThreshold)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

// TestExecute_MissingConfigFile verifies an explicit missing file fails.
func TestExecute_MissingConfigFile(t *testing.T) {
	isolate(t)
	app, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := execute(t, app, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version"); err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

// TestExecute_PersistentHistory reconciles with a SQLite store and reads
// the job back from a second process-like App.
func TestExecute_PersistentHistory(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "people.json")
	data := `[{"id": "1", "name": "Alice Martin"}, {"id": "2", "name": "Alice Martin"}]`
	if err := os.WriteFile(input, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RECON_STORE_DRIVER", "sqlite")
	t.Setenv("RECON_STORE_PATH", filepath.Join(dir, "jobs.db"))

	first, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	out, err := execute(t, first, "reconcile", "-f", input, "--match-fields", "name", "--no-dedupe", "-o", "json")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	var result struct {
		ID           string `json:"reconciliation_id"`
		MatchedPairs int    `json:"matched_pairs"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("reconcile output is not JSON: %v", err)
	}
	if result.MatchedPairs != 1 {
		t.Errorf("MatchedPairs = %d, want 1", result.MatchedPairs)
	}
	if err := first.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	second, err := New("dev", "", "", "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = second.Shutdown(context.Background()) }()

	out, err = execute(t, second, "jobs", "get", result.ID, "-o", "json")
	if err != nil {
		t.Fatalf("jobs get failed: %v", err)
	}
	var job struct {
		ID string `json:"reconciliation_id"`
	}
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("jobs get output is not JSON: %v", err)
	}
	if job.ID != result.ID {
		t.Errorf("job ID = %q, want %q", job.ID, result.ID)
	}
}
