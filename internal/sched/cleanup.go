package sched

import (
	"os"
	"path/filepath"
	"time"
)

const (
	tmpDirName   = "tmp"
	voiceDirName = "voice"

	// Default retention for the transient-files area. Voice notes are
	// bulkier and lose value faster, so they get a shorter window.
	DefaultTmpMaxAge   = 30 * 24 * time.Hour
	DefaultVoiceMaxAge = 7 * 24 * time.Hour
)

// CleanupTmp prunes a workspace's transient-files area and returns how many
// files were deleted. Only direct file entries of tmp/ and tmp/voice/ are
// inspected; other nested directories are never recursed into or deleted. A
// missing area is not an error.
func CleanupTmp(wsDir string, now time.Time, tmpMaxAge, voiceMaxAge time.Duration) (int, error) {
	tmpDir := filepath.Join(wsDir, tmpDirName)

	deleted, err := pruneDir(tmpDir, now, tmpMaxAge)
	if err != nil {
		return deleted, err
	}
	n, err := pruneDir(filepath.Join(tmpDir, voiceDirName), now, voiceMaxAge)
	deleted += n
	return deleted, err
}

func pruneDir(dir string, now time.Time, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
