package language

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"ko", "ko"},
		{"EN", "en"},
		{"KO", "ko"},
		{"en-US", "en"},
		{"ko_KR", "ko"},
		{"", "en"},
		{"fr", "en"},
		{"zh-CN", "en"},
		{"  ko  ", "ko"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSupported(t *testing.T) {
	for _, code := range []string{"en", "ko", "en-GB", "KO"} {
		if !Supported(code) {
			t.Errorf("Supported(%q) = false, want true", code)
		}
	}
	for _, code := range []string{"", "fr", "ja", "english"} {
		if Supported(code) {
			t.Errorf("Supported(%q) = true, want false", code)
		}
	}
}
