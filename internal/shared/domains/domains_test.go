package domains

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"www.example.com":  "example.com",
		"example.com":      "example.com",
		"shop.example.com": "shop.example.com",
		"wwwexample.com":   "wwwexample.com",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromURL(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/login":    "example.com",
		"https://shop.example.com/":        "shop.example.com",
		"http://localhost:3000/app":        "localhost:3000",
		"http://127.0.0.1:8080/":           "127.0.0.1:8080",
		"http://localhost/":                "localhost",
		"https://example.com:8443/path":    "example.com",
		"not a url":                        "",
		"":                                 "",
	}
	for in, want := range cases {
		if got := FromURL(in); got != want {
			t.Errorf("FromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		cookieDomain string
		target       string
		want         bool
	}{
		{".example.com", "example.com", true},
		{"example.com", "example.com", true},
		{".example.com", "www.example.com", true},
		{"www.example.com", "example.com", true},
		{".example.com", "shop.example.com", true},
		{"shop.example.com", "shop.example.com", true},
		{"shop.example.com", "example.com", false},
		{"example.com", "notexample.com", false},
		{".example.com", "notexample.com", false},
		{"example.com", "other.org", false},
		{"", "example.com", false},
		{".example.com", "", false},
		{"localhost", "localhost:3000", true},
	}

	for _, tt := range tests {
		if got := Matches(tt.cookieDomain, tt.target); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.cookieDomain, tt.target, got, tt.want)
		}
	}
}
