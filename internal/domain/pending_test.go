package domain

import (
	"testing"
	"time"
)

func TestPendingNameRoundTrip(t *testing.T) {
	at := time.Unix(0, 1724500000123456789)

	tests := []struct {
		exec string
		pid  int
	}{
		{"myserver", 1234},
		{"my.dotted.name", 7},
		{"a", 999999},
	}
	for _, tt := range tests {
		name := PendingName(tt.exec, tt.pid, at)
		exec, pid, created, err := ParsePendingName(name)
		if err != nil {
			t.Fatalf("ParsePendingName(%q): %v", name, err)
		}
		if exec != tt.exec || pid != tt.pid || !created.Equal(at) {
			t.Errorf("ParsePendingName(%q) = (%q, %d, %v), want (%q, %d, %v)",
				name, exec, pid, created, tt.exec, tt.pid, at)
		}
	}
}

func TestParsePendingNameRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"wrong suffix", "myserver.1234.99.log"},
		{"no fields", "panicky.panic"},
		{"missing pid", "myserver.99.panic"},
		{"bad pid", "myserver.x.99.panic"},
		{"bad timestamp", "myserver.1234.soon.panic"},
		{"empty exec", ".1234.99.panic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParsePendingName(tt.in); err == nil {
				t.Errorf("ParsePendingName(%q) succeeded, want error", tt.in)
			}
		})
	}
}
