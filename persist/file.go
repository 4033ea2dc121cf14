package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SaveFile writes a snapshot to path, creating parent directories.
func SaveFile(snap *WorldSnapshot, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// SaveDir writes a snapshot into dir under a name derived from its tick and
// bookmark. Returns the file path.
func SaveDir(snap *WorldSnapshot, dir string) (string, error) {
	name := fmt.Sprintf("snapshot_%d", snap.Tick)
	if snap.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snap.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snap.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")
	if err := SaveFile(snap, path); err != nil {
		return "", err
	}
	return path, nil
}

// LoadFile reads a snapshot from disk.
func LoadFile(path string) (*WorldSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// FileSink overwrites a single file on every save.
type FileSink struct {
	Path string
}

// Save implements Sink.
func (f FileSink) Save(_ context.Context, snap *WorldSnapshot) error {
	return SaveFile(snap, f.Path)
}
