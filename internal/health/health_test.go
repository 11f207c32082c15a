package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/speechgate/internal/resilience"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decode(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("output dir missing") }

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{"no checkers", nil, http.StatusOK, nil},
		{
			"all pass",
			[]Checker{{Name: "transcribers", Check: pass}, {Name: "output", Check: pass}},
			http.StatusOK,
			map[string]string{"transcribers": "ok", "output": "ok"},
		},
		{
			"one fails",
			[]Checker{{Name: "transcribers", Check: pass}, {Name: "output", Check: fail}},
			http.StatusServiceUnavailable,
			map[string]string{"transcribers": "ok", "output": "fail: output dir missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			New(tt.checkers...).Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			for k, want := range tt.wantChecks {
				if body.Checks[k] != want {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], want)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New().Register(mux)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestBreakerCheck(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		states  map[string]resilience.State
		wantErr string
	}{
		{"none configured", nil, ""},
		{"one healthy", map[string]resilience.State{"server": resilience.StateOpen, "native": resilience.StateClosed}, ""},
		{"probing counts", map[string]resilience.State{"server": resilience.StateProbing}, ""},
		{"all open", map[string]resilience.State{"server": resilience.StateOpen, "native": resilience.StateOpen}, "all backends open: native, server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := BreakerCheck("transcribers", func() map[string]resilience.State { return tt.states })
			err := c.Check(context.Background())
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantErr != "" && (err == nil || err.Error() != tt.wantErr):
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBreakerCheck_Chain(t *testing.T) {
	t.Parallel()
	chain := resilience.NewTranscriberChain()
	c := BreakerCheck("transcribers", chain.States)
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("empty chain: %v", err)
	}
}

func TestDirCheck(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := DirCheck("output", dir).Check(context.Background()); err != nil {
		t.Errorf("existing dir: %v", err)
	}
	if err := DirCheck("output", filepath.Join(dir, "missing")).Check(context.Background()); err == nil {
		t.Error("missing dir: expected error")
	}
	err := DirCheck("output", file).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("file: err = %v, want not a directory", err)
	}
}
