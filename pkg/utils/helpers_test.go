package utils

import (
	"path/filepath"
	"testing"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://storage.googleapis.com/crlite-filters-prod", true},
		{"http://crl.example.com/a.crl", true},
		{"example.com/no-scheme", false},
		{"", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		if got := IsValidURL(tt.in); got != tt.want {
			t.Errorf("IsValidURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}
	for _, tt := range tests {
		if got := HumanizeBytes(tt.in); got != tt.want {
			t.Errorf("HumanizeBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !FileExists(dir) {
		t.Error("directory should exist after EnsureDir")
	}
}
