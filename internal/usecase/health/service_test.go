package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := &mockPinger{err: errors.New("conn refused")}
	up := &mockPinger{}

	tests := []struct {
		name   string
		checks map[string]Pinger
		want   Status
		failed []string
	}{
		{"all healthy", map[string]Pinger{"cache": up, "portal": up, "ogc": up}, Healthy, nil},
		{"cache down", map[string]Pinger{"cache": down, "portal": up, "ogc": up}, Degraded, []string{"cache"}},
		{"all down", map[string]Pinger{"portal": down, "ogc": down}, Unhealthy, []string{"portal", "ogc"}},
		{"nothing configured", nil, Healthy, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.checks).Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("expected %q, got %q", tt.want, r.Status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Errorf("expected %d checks, got %d", len(tt.checks), len(r.Checks))
			}
			for _, name := range tt.failed {
				if r.Checks[name] != CheckError {
					t.Errorf("expected %s %q, got %q", name, CheckError, r.Checks[name])
				}
			}
		})
	}
}

func TestNew_SkipsNilPingers(t *testing.T) {
	svc := New(map[string]Pinger{"portal": &mockPinger{}, "cache": nil})
	r := svc.Check(context.Background())
	if _, ok := r.Checks["cache"]; ok {
		t.Error("nil pinger should be skipped")
	}
	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
}
