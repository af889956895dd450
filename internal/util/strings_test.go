package util

import "testing"

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than limit", input: "short", maxLen: 10, want: "short"},
		{name: "equal to limit", input: "exactly10c", maxLen: 10, want: "exactly10c"},
		{name: "hex token prefix", input: "0123456789abcdef0123", maxLen: 8, want: "01234567"},
		{name: "empty", input: "", maxLen: 5, want: ""},
		{name: "zero limit", input: "test", maxLen: 0, want: ""},
		{name: "negative limit", input: "test", maxLen: -1, want: ""},
		{name: "multibyte boundary", input: "hello世界test", maxLen: 8, want: "hello世"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeTruncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "https://example.com/", want: "https://example.com"},
		{input: "https://example.com", want: "https://example.com"},
		{input: "https://example.com///", want: "https://example.com"},
		{input: "https://localhost:3000/", want: "https://localhost:3000"},
		{input: "https://example.com/base/", want: "https://example.com/base"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsLoopbackHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     bool
	}{
		{hostname: "localhost", want: true},
		{hostname: "127.0.0.1", want: true},
		{hostname: "127.10.0.3", want: true},
		{hostname: "::1", want: true},
		{hostname: "[::1]", want: true},
		{hostname: "0.0.0.0", want: false},
		{hostname: "10.0.0.1", want: false},
		{hostname: "example.com", want: false},
		{hostname: "", want: false},
	}

	for _, tt := range tests {
		if got := IsLoopbackHostname(tt.hostname); got != tt.want {
			t.Errorf("IsLoopbackHostname(%q) = %v, want %v", tt.hostname, got, tt.want)
		}
	}
}
