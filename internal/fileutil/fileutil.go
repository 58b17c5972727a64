// Package fileutil provides filesystem preflight checks and output path
// selection for compression jobs.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"vise/internal/services"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (free uint64, err error)

var statfs statfsFunc = realStatfs

const maxNamingAttempts = 1000

// CheckSource verifies the input exists, is a regular file, and is readable.
// Failures carry the classification the queue records on the job.
func CheckSource(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, services.Wrap(services.ErrNotFound, "fileutil", "stat input", path, err)
		case os.IsPermission(err):
			return nil, services.Wrap(services.ErrPermissionDenied, "fileutil", "stat input", path, err)
		default:
			return nil, services.Wrap(services.ErrUnknown, "fileutil", "stat input", path, err)
		}
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrInvalidInput, "fileutil", "stat input",
			fmt.Sprintf("%s is a directory", path), nil)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, services.Wrap(services.ErrPermissionDenied, "fileutil", "read input", path, err)
	}
	return info, nil
}

// EnsureOutputDir creates the directory holding the output file when missing
// and verifies it is writable.
func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrOutputPath, "fileutil", "create output directory", dir, err)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrOutputPath, "fileutil", "write output directory", dir, err)
	}
	return nil
}

// CheckFreeSpace verifies the filesystem holding dir has room for an output
// of the estimated size plus the configured floor. The estimate is typically
// the input size, a worst case for a compression pass.
func CheckFreeSpace(dir string, estimatedBytes, minFreeMiB int64) error {
	free, err := statfs(dir)
	if err != nil {
		return services.Wrap(services.ErrOutputPath, "fileutil", "statfs", dir, err)
	}
	var need uint64
	if estimatedBytes > 0 {
		need += uint64(estimatedBytes)
	}
	if minFreeMiB > 0 {
		need += uint64(minFreeMiB) * 1024 * 1024
	}
	if free < need {
		return services.Wrap(services.ErrInsufficientSpace, "fileutil", "check free space",
			fmt.Sprintf("%s has %d MiB free, need %d MiB", dir, free/(1024*1024), need/(1024*1024)), nil)
	}
	return nil
}

// UniqueOutputPath returns a path for the compressed rendition of input that
// does not exist yet. The name is "<stem>.<suffix><ext>" beside the source,
// or under outputDir when configured, with a numeric insert on collision.
func UniqueOutputPath(input, outputDir, suffix string) (string, error) {
	dir := filepath.Dir(input)
	if strings.TrimSpace(outputDir) != "" {
		dir = outputDir
	}
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := stem
	if suffix != "" {
		name = stem + "." + suffix
	}
	candidate := filepath.Join(dir, name+ext)
	for attempt := 1; attempt <= maxNamingAttempts; attempt++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%d%s", name, attempt, ext))
	}
	return "", services.Wrap(services.ErrOutputPath, "fileutil", "pick output name",
		fmt.Sprintf("no unused name for %s after %d attempts", input, maxNamingAttempts), nil)
}

// HasAllowedExtension reports whether path carries one of the normalized
// (lowercase, dot-prefixed) extensions.
func HasAllowedExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
