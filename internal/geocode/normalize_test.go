package geocode

import (
	"errors"
	"strings"
	"testing"
)

func TestStripUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"350 5th Ave Suite 2500, New York, NY 10118", "350 5th Ave, New York, NY 10118"},
		{"1 W 46th St, Ste. 5B, New York", "1 W 46th St, New York"},
		{"200 Park Ave 3rd Floor", "200 Park Ave"},
		{"10 Columbus Cir #304", "10 Columbus Cir"},
		{"31-00 Steinway St, Astoria", "31-00 Steinway St, Astoria"},
		{"55 Water St Fl 21", "55 Water St"},
	}
	for _, tt := range tests {
		if got := StripUnits(tt.in); got != tt.want {
			t.Errorf("StripUnits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripPostal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"350 5th Ave, New York, NY 10118", "350 5th Ave"},
		{"167 W 74th St, Manhattan", "167 W 74th St"},
		{"1435 Broadway 10018-1234", "1435 Broadway"},
		{"1435 Broadway", "1435 Broadway"},
	}
	for _, tt := range tests {
		if got := StripPostal(tt.in); got != tt.want {
			t.Errorf("StripPostal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandSynonyms(t *testing.T) {
	if got := ExpandSynonyms("1185 6th Ave, New York, NY"); got != "1185 Avenue of the Americas, New York, NY" {
		t.Errorf("6th Ave alias = %q", got)
	}
	if got := ExpandSynonyms("1271 Avenue of the Americas"); got != "1271 6th Avenue" {
		t.Errorf("reverse alias = %q", got)
	}
	if got := ExpandSynonyms("167 W 74th St"); got != "167 W 74th St" {
		t.Errorf("no alias should be a no-op, got %q", got)
	}
}

func TestVariantsLadder(t *testing.T) {
	got := Variants("  350 5th Ave   Suite 2500, New York, NY 10118 ", "New York, NY", true)
	want := []string{
		"350 5th Ave Suite 2500, New York, NY 10118",
		"350 5th Ave, New York, NY 10118",
		"350 5th Ave, New York, NY",
		"New York, NY",
	}
	if strings.Join(got, " | ") != strings.Join(want, " | ") {
		t.Errorf("Variants =\n  %q\nwant\n  %q", got, want)
	}

	if v := Variants("   ", "New York, NY", true); v != nil {
		t.Errorf("blank query should have no variants, got %q", v)
	}

	noCity := Variants("350 5th Ave", "New York, NY", false)
	for _, v := range noCity {
		if v == "New York, NY" {
			t.Error("bare city must not be tried unless enabled")
		}
	}
}

func TestCacheKey(t *testing.T) {
	if CacheKey("  350  5th AVE ") != CacheKey("350 5th ave") {
		t.Error("cache keys should ignore case and whitespace")
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Error("nil error has no message")
	}
	msgs := map[string]bool{}
	for _, k := range []Kind{KindNotFound, KindRateLimited, KindNetwork, KindParse, KindRejected} {
		msg := UserMessage(newError(k, "q", 0, nil))
		if msg == "" {
			t.Errorf("kind %s has no message", k)
		}
		msgs[msg] = true
	}
	if len(msgs) != 5 {
		t.Errorf("each kind should read differently, got %d distinct messages", len(msgs))
	}
	if UserMessage(errors.New("boom")) == "" {
		t.Error("unknown errors still get a generic message")
	}
}

func TestErrorClassification(t *testing.T) {
	err := newError(KindRateLimited, "q", 503, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Error("rate limited error should match its sentinel")
	}
	if !IsRetryable(err) {
		t.Error("rate limiting is retryable")
	}
	if IsRetryable(newError(KindNotFound, "q", 200, nil)) {
		t.Error("not found is definitive")
	}
	if IsRetryable(newError(KindParse, "q", 200, nil)) {
		t.Error("parse errors are not retried")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("foreign errors have no kind")
	}
}
