package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	lockSuffix  = ".lock"
	guardSuffix = ".guard"
	tempPrefix  = ".tmp-"
)

var errCorrupt = errors.New("corrupt lock file")

// escapeName maps a lock name to a file-safe, injective base name.
// Bytes outside [A-Za-z0-9_:-] and a leading '.' are written as %XX.
func escapeName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		safe := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '_' || c == '-' || c == ':' || (c == '.' && i > 0)
		if safe {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, escapeName(name)+lockSuffix)
}

func (m *Manager) guardPath(name string) string {
	return filepath.Join(m.dir, "."+escapeName(name)+guardSuffix)
}

func (m *Manager) ensureDir() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return storageErr("mkdir", m.dir, err)
	}
	return nil
}

// writeTemp writes data to a synced temp file next to the lock file.
func (m *Manager) writeTemp(name string, data []byte) (string, error) {
	file, err := os.CreateTemp(m.dir, tempPrefix+escapeName(name)+"-*")
	if err != nil {
		return "", storageErr("create temp", m.dir, err)
	}
	tmp := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", storageErr("write", tmp, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", storageErr("sync", tmp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", storageErr("close", tmp, err)
	}
	return tmp, nil
}

// read loads the lock file for name. It returns fs.ErrNotExist when absent
// and errCorrupt when the content is not a valid record.
func (m *Manager) read(name string) (*Lock, error) {
	return readFile(m.path(name))
}

func readFile(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, storageErr("read", path, err)
	}

	var l Lock
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errCorrupt
	}
	if l.Name == "" || l.Token == "" || l.ExpiresAt.IsZero() || l.AcquiredAt.IsZero() {
		return nil, errCorrupt
	}
	return &l, nil
}

// removeFile deletes path; a file that is already gone is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("remove", path, err)
	}
	return nil
}

// withGuard runs fn while holding an exclusive flock on the guard file for
// name. Guard files are never deleted so every process contends on the
// same inode.
func (m *Manager) withGuard(name string, fn func() error) error {
	if err := m.ensureDir(); err != nil {
		return err
	}

	guard := m.guardPath(name)
	file, err := os.OpenFile(guard, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return storageErr("open guard", guard, err)
	}
	defer file.Close()

	fd := int(file.Fd())
	for {
		err = unix.Flock(fd, unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return storageErr("flock", guard, err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}
