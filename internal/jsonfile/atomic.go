// Package jsonfile provides the file-backed stores: one JSON document per
// department and a single lock snapshot file. All writes go through a
// temp-file-then-rename sequence so a crash mid-write never leaves a
// half-written file visible.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// writeJSONAtomic serializes v to path. The rename is the only step that
// makes the write visible; when withBackup is set the previous live file is
// copied to path+".bak" first (single generation, overwritten each time).
func writeJSONAtomic(path string, v any, withBackup bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}

	if withBackup {
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, path+".bak"); err != nil {
				os.Remove(tmpPath)
				return fmt.Errorf("backing up %s: %w", path, err)
			}
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("committing %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
