package lock

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aatumaykin/nexcron/internal/logger"
)

// orphanTempAge is how old a leftover temp file must be before a sweep
// deletes it. Writers hold temp files for microseconds.
const orphanTempAge = 10 * time.Minute

// Status describes one lock file found in the directory.
type Status struct {
	Name       string
	Path       string
	Lock       *Lock // nil when Corrupt
	Stale      bool
	Corrupt    bool
	OwnerAlive bool
}

// CleanupStale removes every stale or corrupt lock file in the directory and
// returns how many were removed. Files deleted concurrently by another
// process are skipped silently.
func (m *Manager) CleanupStale() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, storageErr("readdir", m.dir, err)
	}

	now := m.now()
	removed := 0
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(fileName, tempPrefix) {
			m.removeOrphanTemp(entry, now)
			continue
		}
		if !strings.HasSuffix(fileName, lockSuffix) || strings.HasPrefix(fileName, ".") {
			continue
		}

		path := filepath.Join(m.dir, fileName)
		name := unescapeName(strings.TrimSuffix(fileName, lockSuffix))

		err := m.withGuard(name, func() error {
			current, err := readFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return nil
			case errors.Is(err, errCorrupt):
			case err != nil:
				return err
			case !current.IsStale(now):
				return nil
			}

			if err := os.Remove(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return storageErr("remove", path, err)
			}
			removed++
			m.logger.Debug("stale lock removed", logger.Field{Key: "lock", Value: name})
			return nil
		})
		if err != nil {
			return removed, err
		}
	}

	return removed, nil
}

// List returns the status of every lock file, sorted by name.
func (m *Manager) List() ([]Status, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("readdir", m.dir, err)
	}

	now := m.now()
	var statuses []Status
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || strings.HasPrefix(fileName, ".") || !strings.HasSuffix(fileName, lockSuffix) {
			continue
		}

		path := filepath.Join(m.dir, fileName)
		st := Status{Name: unescapeName(strings.TrimSuffix(fileName, lockSuffix)), Path: path}
		l, err := readFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case errors.Is(err, errCorrupt):
			st.Corrupt = true
			st.Stale = true
		case err != nil:
			return nil, err
		default:
			st.Name = l.Name
			st.Lock = l
			st.Stale = l.IsStale(now)
			st.OwnerAlive = processAlive(l.OwnerPID)
		}
		statuses = append(statuses, st)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

func (m *Manager) removeOrphanTemp(entry fs.DirEntry, now time.Time) {
	info, err := entry.Info()
	if err != nil || now.Sub(info.ModTime()) < orphanTempAge {
		return
	}
	path := filepath.Join(m.dir, entry.Name())
	if err := os.Remove(path); err == nil {
		m.logger.Debug("orphan temp file removed", logger.Field{Key: "path", Value: path})
	}
}

// unescapeName reverses escapeName. Malformed escapes are kept verbatim.
func unescapeName(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, ok := hexByte(s[i+1], s[i+2]); ok {
				b.WriteByte(v)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
