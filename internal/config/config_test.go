package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_MatchingDefaults(t *testing.T) {
	t.Setenv("MATCH_EXPANSION_RADII", "")
	t.Setenv("MATCH_CANDIDATE_LIMIT", "")

	cfg := Load()

	if !reflect.DeepEqual(cfg.Matching.ExpansionRadii, []int{5000, 10000, 15000}) {
		t.Errorf("unexpected radii: %v", cfg.Matching.ExpansionRadii)
	}
	if cfg.Matching.CandidateLimit != 10 {
		t.Errorf("expected K=10, got %d", cfg.Matching.CandidateLimit)
	}
	if cfg.Matching.DriverSpeedKmh != 25 {
		t.Errorf("expected 25 km/h, got %f", cfg.Matching.DriverSpeedKmh)
	}
	if cfg.Matching.SearchLockTTL != 30*time.Second {
		t.Errorf("unexpected lock ttl: %s", cfg.Matching.SearchLockTTL)
	}
}

func TestGetIntListEnv(t *testing.T) {
	def := []int{1, 2}
	tests := []struct {
		name  string
		value string
		want  []int
	}{
		{"empty uses default", "", def},
		{"valid list", "3000, 6000,9000", []int{3000, 6000, 9000}},
		{"non numeric", "3000,abc", def},
		{"not ascending", "6000,3000", def},
		{"zero", "0,5000", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_RADII", tt.value)
			got := getIntListEnv("TEST_RADII", def)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("getIntListEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetFloatEnv_RejectsNonPositive(t *testing.T) {
	t.Setenv("TEST_SPEED", "-4")
	if got := getFloatEnv("TEST_SPEED", 25); got != 25 {
		t.Errorf("expected default for negative speed, got %f", got)
	}
	t.Setenv("TEST_SPEED", "40.5")
	if got := getFloatEnv("TEST_SPEED", 25); got != 40.5 {
		t.Errorf("expected 40.5, got %f", got)
	}
}

func TestLoad_MatchingRejectsNonPositive(t *testing.T) {
	t.Setenv("MATCH_EXPANSION_RADII", " ")
	t.Setenv("MATCH_DEFAULT_RADIUS", "0")
	t.Setenv("MATCH_CANDIDATE_LIMIT", "-1")
	t.Setenv("MATCH_WORKERS", "0")

	m := Load().Matching

	if !reflect.DeepEqual(m.ExpansionRadii, []int{5000, 10000, 15000}) {
		t.Errorf("unexpected radii: %v", m.ExpansionRadii)
	}
	if m.DefaultRadius != 5000 {
		t.Errorf("expected default radius 5000, got %d", m.DefaultRadius)
	}
	if m.CandidateLimit != 10 {
		t.Errorf("expected K=10, got %d", m.CandidateLimit)
	}
	if m.Workers != 16 {
		t.Errorf("expected 16 workers, got %d", m.Workers)
	}
}
