package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon/pkg/logging"
)

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf).Level(zerolog.DebugLevel))

	logging.Default().Info().Msg("info message")
	logging.FromContext(context.Background()).Debug().Msg("debug message")

	output := buf.String()
	if !strings.Contains(output, "info message") || !strings.Contains(output, "debug message") {
		t.Errorf("expected both messages in output, got: %s", output)
	}
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithJob(ctx, "job-123")
	ctx = logging.WithEntityType(ctx, "customer")
	ctx = logging.WithOperation(ctx, "reconcile")

	logging.FromContext(ctx).Info().Msg("scoring pairs")

	testLogger.AssertContains(t, `"job_id":"job-123"`)
	testLogger.AssertContains(t, `"entity_type":"customer"`)
	testLogger.AssertContains(t, `"operation":"reconcile"`)
	testLogger.AssertContains(t, "scoring pairs")
}

func TestEmptyEntityTypeIsSkipped(t *testing.T) {
	testLogger := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithEntityType(ctx, "")

	logging.FromContext(ctx).Info().Msg("hello")
	testLogger.AssertNotContains(t, "entity_type")
}

func TestRequestID(t *testing.T) {
	testLogger := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithRequestID(ctx, "req-9")

	if got := logging.RequestID(ctx); got != "req-9" {
		t.Errorf("RequestID() = %q, want req-9", got)
	}
	logging.FromContext(ctx).Info().Msg("handled")
	testLogger.AssertContains(t, `"request_id":"req-9"`)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("expected default logger for bare context")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		emit    func(l zerolog.Logger)
		want    bool
		wantStr string
	}{
		{
			name:    "info passes at info level",
			level:   "info",
			emit:    func(l zerolog.Logger) { l.Info().Msg("visible") },
			want:    true,
			wantStr: "visible",
		},
		{
			name:    "debug dropped at warn level",
			level:   "warn",
			emit:    func(l zerolog.Logger) { l.Debug().Msg("hidden") },
			want:    false,
			wantStr: "hidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := zerolog.GlobalLevel()
			t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

			logger := logging.New(&logging.Config{
				Level:  tt.level,
				Format: "json",
				Output: "discard",
			})
			buf := &bytes.Buffer{}
			tt.emit(logger.Output(buf))
			if got := strings.Contains(buf.String(), tt.wantStr); got != tt.want {
				t.Errorf("contains %q = %v, want %v (output %q)", tt.wantStr, got, tt.want, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"TRACE":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"disabled": zerolog.Disabled,
		"chatty":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTestLoggerEntries(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithJob(logging.WithLogger(context.Background(), tl.Logger), "job-1")

	logging.FromContext(ctx).Info().Int("records", 3).Msg("started")
	logging.FromContext(ctx).Warn().Msg("slow")

	entries := tl.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %s", len(entries), tl.Output())
	}
	if entries[0]["job_id"] != "job-1" || entries[0]["records"] != float64(3) {
		t.Errorf("unexpected first entry: %v", entries[0])
	}
	if got := tl.Messages(); strings.Join(got, ",") != "started,slow" {
		t.Errorf("Messages() = %v", got)
	}
}
