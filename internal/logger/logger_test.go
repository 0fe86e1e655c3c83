package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"350 5th Ave Suite 2500, New York, NY 10118", "### #th Ave Suite ####, New York, NY #####"},
		{"Hotel Edison", "Hotel Edison"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskAddress(tt.in); got != tt.want {
			t.Errorf("MaskAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddressField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zap.New(core).Info("address search failed", Address("address", "1 W 46th St"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if got := entries[0].ContextMap()["address"]; got != "# W ##th St" {
		t.Errorf("logged address = %v", got)
	}
}
