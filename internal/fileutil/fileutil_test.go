package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vise/internal/services"
)

func stubStatfs(t *testing.T, fn statfsFunc) {
	t.Helper()
	prev := statfs
	statfs = fn
	t.Cleanup(func() { statfs = prev })
}

func TestCheckSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := CheckSource(path)
	if err != nil {
		t.Fatalf("CheckSource: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}
}

func TestCheckSourceMissing(t *testing.T) {
	_, err := CheckSource(filepath.Join(t.TempDir(), "nope.mkv"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckSourceDirectory(t *testing.T) {
	_, err := CheckSource(t.TempDir())
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEnsureOutputDirCreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := EnsureOutputDir(dir); err != nil {
		t.Fatalf("EnsureOutputDir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestCheckFreeSpaceSatisfied(t *testing.T) {
	stubStatfs(t, func(string) (uint64, error) { return 10 * 1024 * 1024 * 1024, nil })
	if err := CheckFreeSpace(t.TempDir(), 1024*1024*1024, 512); err != nil {
		t.Fatalf("CheckFreeSpace: %v", err)
	}
}

func TestCheckFreeSpaceInsufficient(t *testing.T) {
	stubStatfs(t, func(string) (uint64, error) { return 100 * 1024 * 1024, nil })
	err := CheckFreeSpace(t.TempDir(), 1024*1024*1024, 512)
	if !errors.Is(err, services.ErrInsufficientSpace) {
		t.Fatalf("err = %v, want ErrInsufficientSpace", err)
	}
}

func TestCheckFreeSpaceFloorOnly(t *testing.T) {
	stubStatfs(t, func(string) (uint64, error) { return 100 * 1024 * 1024, nil })
	err := CheckFreeSpace(t.TempDir(), 0, 512)
	if !errors.Is(err, services.ErrInsufficientSpace) {
		t.Fatalf("err = %v, want ErrInsufficientSpace", err)
	}
}

func TestCheckFreeSpaceStatError(t *testing.T) {
	stubStatfs(t, func(string) (uint64, error) { return 0, errors.New("boom") })
	err := CheckFreeSpace(t.TempDir(), 0, 512)
	if !errors.Is(err, services.ErrOutputPath) {
		t.Fatalf("err = %v, want ErrOutputPath", err)
	}
}

func TestUniqueOutputPathBesideSource(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.mkv")

	got, err := UniqueOutputPath(input, "", "compressed")
	if err != nil {
		t.Fatalf("UniqueOutputPath: %v", err)
	}
	want := filepath.Join(dir, "movie.compressed.mkv")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestUniqueOutputPathCollisions(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.mkv")
	for _, name := range []string{"movie.compressed.mkv", "movie.compressed.1.mkv"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := UniqueOutputPath(input, "", "compressed")
	if err != nil {
		t.Fatalf("UniqueOutputPath: %v", err)
	}
	want := filepath.Join(dir, "movie.compressed.2.mkv")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestUniqueOutputPathHonorsOutputDir(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	input := filepath.Join(srcDir, "clip.mp4")

	got, err := UniqueOutputPath(input, outDir, "compressed")
	if err != nil {
		t.Fatalf("UniqueOutputPath: %v", err)
	}
	want := filepath.Join(outDir, "clip.compressed.mp4")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestUniqueOutputPathEmptySuffixSkipsSource(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(input, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := UniqueOutputPath(input, "", "")
	if err != nil {
		t.Fatalf("UniqueOutputPath: %v", err)
	}
	if got == input {
		t.Fatalf("output path collides with source: %q", got)
	}
	want := filepath.Join(dir, "movie.1.mkv")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestHasAllowedExtension(t *testing.T) {
	allowed := []string{".mkv", ".mp4"}
	cases := []struct {
		path string
		want bool
	}{
		{"/media/movie.mkv", true},
		{"/media/MOVIE.MKV", true},
		{"/media/clip.mp4", true},
		{"/media/notes.txt", false},
		{"/media/noext", false},
	}
	for _, tc := range cases {
		if got := HasAllowedExtension(tc.path, allowed); got != tc.want {
			t.Errorf("HasAllowedExtension(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
