package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	snapshotPrefix = "snapshot-"
	snapshotSuffix = ".json"
	sequenceFile   = "sequence"
)

// FileBackend stores one JSON file per version in a directory. Writes go
// through a temp file and rename so readers never see a partial file.
type FileBackend struct {
	dir string
	mu  sync.Mutex // guards the sequence file
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("file backend: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file backend: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(version uint64) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s%020d%s", snapshotPrefix, version, snapshotSuffix))
}

func (f *FileBackend) Load(_ context.Context, version uint64) ([]byte, error) {
	data, err := os.ReadFile(f.path(version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(version)
	}
	return data, err
}

func (f *FileBackend) Save(_ context.Context, version uint64, data []byte) error {
	return writeAtomic(f.path(version), data)
}

func (f *FileBackend) ListVersions(context.Context) ([]uint64, error) {
	ents, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
		v, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

func (f *FileBackend) Delete(_ context.Context, version uint64) error {
	err := os.Remove(f.path(version))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(version)
	}
	return err
}

// NextVersion persists the last handed-out version before returning it.
func (f *FileBackend) NextVersion(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := filepath.Join(f.dir, sequenceFile)
	var last uint64
	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		last, err = strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence file: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return 0, err
	}

	next := last + 1
	if err := writeAtomic(p, []byte(strconv.FormatUint(next, 10)+"\n")); err != nil {
		return 0, err
	}
	return next, nil
}

func (f *FileBackend) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
