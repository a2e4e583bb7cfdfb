package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/weenafk/stabilise/server/world"
)

// regionFileName returns the on-disk file name for pos, following the
// r_<rx>_<ry>.region convention.
func regionFileName(pos world.RegionPos) string {
	return fmt.Sprintf("r_%d_%d.region", pos[0], pos[1])
}

// writeFileAtomic writes data to the path for pos inside dir by first
// writing to a temporary file in the same directory, fsyncing it, then
// renaming it over the destination. This guarantees a reader never observes
// a partially-written region file, even if the process is killed mid-write.
func writeFileAtomic(dir string, pos world.RegionPos, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create region directory: %w", err)
	}
	final := filepath.Join(dir, regionFileName(pos))
	tmp, err := os.CreateTemp(dir, regionFileName(pos)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp region file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp region file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp region file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp region file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("rename region file into place: %w", err)
	}
	return nil
}

// readFile reads the raw bytes of pos's region file, reporting os.IsNotExist
// via the returned bool so callers can distinguish "never saved" from a
// genuine read error.
func readFile(dir string, pos world.RegionPos) (data []byte, exists bool, err error) {
	data, err = os.ReadFile(filepath.Join(dir, regionFileName(pos)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read region file: %w", err)
	}
	return data, true, nil
}
