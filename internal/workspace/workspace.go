// Package workspace enumerates the isolated workspace directories the
// scheduler processes each tick.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Workspace identifies one isolated workspace on disk.
type Workspace struct {
	Name string
	Dir  string
}

const dirPrefix = "workspace_"

// DirLister scans a root directory for workspaces. Directories named
// workspace_<name> qualify; anything else is ignored. The set is re-scanned
// on every call, so workspaces added or removed externally are picked up on
// the next tick.
type DirLister struct {
	Root string
}

func (l DirLister) Workspaces() ([]Workspace, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Workspace
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		out = append(out, Workspace{
			Name: strings.TrimPrefix(e.Name(), dirPrefix),
			Dir:  filepath.Join(l.Root, e.Name()),
		})
	}
	return out, nil
}
