package sched

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	logx "agentcron/pkg/logx"
)

const (
	cronDirName  = "cron"
	jobsFileName = "jobs.json"
)

// StorePath returns the job store file for a workspace directory.
func StorePath(wsDir string) string {
	return filepath.Join(wsDir, cronDirName, jobsFileName)
}

// LoadStore reads a workspace's job store. A missing, unreadable or corrupt
// file yields an empty valid store: this file is shared with external
// editing tools and a bad write must not take the scheduler down. A
// subsequent save overwrites the corruption.
func LoadStore(wsDir string, log logx.Logger) *StoreFile {
	path := StorePath(wsDir)
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("job store unreadable", logx.String("path", path), logx.Err(err))
		}
		return NewStoreFile()
	}
	var f StoreFile
	if err := json.Unmarshal(b, &f); err != nil {
		log.Warn("job store corrupt, starting empty", logx.String("path", path), logx.Err(err))
		return NewStoreFile()
	}
	if f.Version == 0 {
		f.Version = storeVersion
	}
	return &f
}

// SaveStore writes the store atomically (temp file + rename) so a crash
// mid-write cannot leave a half-written file behind. Parent directories are
// created as needed.
func SaveStore(wsDir string, f *StoreFile) error {
	path := StorePath(wsDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// StoreMtime returns the job store's last-modified time, or the zero time
// when the file does not exist yet. The tick loop compares this against its
// cached load time to notice external edits without a lock.
func StoreMtime(wsDir string) time.Time {
	fi, err := os.Stat(StorePath(wsDir))
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
