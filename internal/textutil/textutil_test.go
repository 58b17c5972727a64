package textutil_test

import (
	"testing"

	"vise/internal/textutil"
)

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/media/the.big.lebowski_1998.mkv", "The Big Lebowski 1998"},
		{"/media/home-video 2024.mp4", "Home Video 2024"},
		{"clip.mov", "Clip"},
		{"", "Unknown File"},
		{"/media/....mkv", "Unknown File"},
	}
	for _, tc := range cases {
		if got := textutil.DisplayTitle(tc.path); got != tc.want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"movie: director's cut", "movie- director's cut"},
		{"a/b\\c", "a-b-c"},
		{"what?.mkv", "what.mkv"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTernary(t *testing.T) {
	if got := textutil.Ternary(true, "yes", "no"); got != "yes" {
		t.Errorf("Ternary(true) = %q", got)
	}
	if got := textutil.Ternary(false, 1, 2); got != 2 {
		t.Errorf("Ternary(false) = %d", got)
	}
}
