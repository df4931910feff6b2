package keys

import "testing"

func TestBuilders(t *testing.T) {
	cases := map[string]string{
		Poll("0x01-0x02"):  "poll:0x01-0x02",
		Preference("0x0a"): "preference:0x0a",
		Profile("0x0a"):    "profile:0x0a",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestNamespace(t *testing.T) {
	cases := map[string]string{
		"poll:abc":            "poll",
		"preference:0x01":     "preference",
		"ratelimit:a:1.2.3.4": "ratelimit",
		Verified:              Verified,
		AllowedTokens:         AllowedTokens,
		StaffPicks:            StaffPicks,
		"":                    "",
	}
	for in, want := range cases {
		if got := Namespace(in); got != want {
			t.Fatalf("Namespace(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDigest(t *testing.T) {
	a, b := Digest("profile:0x01"), Digest("profile:0x02")
	if len(a) != 16 || a == b || a != Digest("profile:0x01") {
		t.Fatalf("Digest not stable/distinct: %q %q", a, b)
	}
}
