package request

import (
	"testing"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
)

func TestNormalize_Defaults(t *testing.T) {
	o, err := Options{}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Num != DefaultNum {
		t.Errorf("Num = %d, want %d", o.Num, DefaultNum)
	}
	if o.Start != DefaultStart {
		t.Errorf("Start = %d, want %d", o.Start, DefaultStart)
	}
	if o.Now.IsZero() {
		t.Error("Now should default to current time")
	}
}

func TestNormalize_Clamp(t *testing.T) {
	o, err := Options{Num: 5000, AggLimit: -1}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Num != MaxNum {
		t.Errorf("Num = %d, want %d", o.Num, MaxNum)
	}
	if o.AggLimit != 0 {
		t.Errorf("AggLimit = %d, want 0", o.AggLimit)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"backend", Options{Backend: "solr"}},
		{"sort order", Options{SortOrder: "sideways"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalize(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		kind entity.Kind
		opts Options
		want Backend
	}{
		{entity.Item, Options{}, Portal},
		{entity.Group, Options{}, Portal},
		{entity.DiscussionPost, Options{}, OGC},
		{entity.Event, Options{}, OGC},
		{entity.Item, Options{Backend: OGC}, OGC},
	}
	for _, tt := range tests {
		if got := tt.opts.ResolveBackend(tt.kind); got != tt.want {
			t.Errorf("ResolveBackend(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}
