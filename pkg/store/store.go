// Package store implements the incubator's two-tier key-value configuration
// store. Each tier is a text file of "KEY:VALUE\n" lines: a read-only tier of
// provisioning defaults and a read-write tier of runtime tunables. Writes can
// only replace the value of a key that already exists in the read-write tier.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var (
	// ErrKeyNotWritable is returned by Set when the key is not declared in
	// the read-write tier.
	ErrKeyNotWritable = errors.New("store: key not writable")
	// ErrStorage wraps failures reading or committing a backing file.
	ErrStorage = errors.New("store: storage failure")
)

// Store is the two-tier configuration store. It is not reentrant; the
// scheduler serialises access.
type Store struct {
	fs     FS
	roFile string
	rwFile string
}

// New creates a store over the OS filesystem.
func New(readOnlyFile, readWriteFile string) *Store {
	return NewWithFS(OSFS{}, readOnlyFile, readWriteFile)
}

// NewWithFS creates a store over the given filesystem.
func NewWithFS(fs FS, readOnlyFile, readWriteFile string) *Store {
	return &Store{
		fs:     fs,
		roFile: readOnlyFile,
		rwFile: readWriteFile,
	}
}

// ReadOnlyFile returns the path of the read-only tier.
func (s *Store) ReadOnlyFile() string { return s.roFile }

// ReadWriteFile returns the path of the read-write tier.
func (s *Store) ReadWriteFile() string { return s.rwFile }

// Get looks key up in the read-only tier, then the read-write tier. The
// read-only value wins when both define the key. An empty value counts as
// missing, so "kp:" in the read-only tier does not hide the read-write kp.
func (s *Store) Get(key string) (string, bool) {
	if v, ok := s.lookup(s.roFile, key); ok && v != "" {
		return v, true
	}
	return s.lookup(s.rwFile, key)
}

// GetString returns the value for key, or "" when it is not defined.
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key)
	return v
}

// GetFloat returns the value for key parsed as a float. Missing or
// malformed values yield def.
func (s *Store) GetFloat(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// GetInt returns the value for key parsed as an integer. Missing or
// malformed values yield def.
func (s *Store) GetInt(key string, def int64) int64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Set replaces the value of key in the read-write tier. The complete new
// content is built in memory and committed in one replace, so a failed Set
// leaves the previous file intact.
func (s *Store) Set(key, value string) error {
	data, err := s.fs.ReadFile(s.rwFile)
	if err != nil {
		slog.Error("Couldn't read config", slog.String("file", s.rwFile), slog.Any("error", err))
		return fmt.Errorf("%w: read %s: %v", ErrStorage, s.rwFile, err)
	}

	entries := Parse(data)
	found := false
	for i, e := range entries {
		if e.Valid() && e.Key == key {
			found = true
			entries[i].Value = value
		}
	}

	if !found {
		slog.Warn("Not found replaceable key", slog.String("key", key), slog.String("file", s.rwFile))
		return fmt.Errorf("%w: %q", ErrKeyNotWritable, key)
	}

	if err := s.fs.WriteFileAtomic(s.rwFile, Format(entries)); err != nil {
		slog.Error("Couldn't commit config", slog.String("file", s.rwFile), slog.Any("error", err))
		return fmt.Errorf("%w: commit %s: %v", ErrStorage, s.rwFile, err)
	}

	return nil
}

// SetIfUnset sets key only when its current read-write value is logically
// false: absent, empty, or numerically zero. It reports whether a write
// happened.
func (s *Store) SetIfUnset(key, value string) (bool, error) {
	current, ok := s.lookup(s.rwFile, key)
	if ok && !isFalsy(current) {
		return false, nil
	}
	if err := s.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Entries returns the entries of both tiers, read-only first.
func (s *Store) Entries() (readOnly, readWrite []Entry, err error) {
	ro, err := s.fs.ReadFile(s.roFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.roFile, err)
	}
	rw, err := s.fs.ReadFile(s.rwFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.rwFile, err)
	}
	return Parse(ro), Parse(rw), nil
}

func (s *Store) lookup(file, key string) (string, bool) {
	data, err := s.fs.ReadFile(file)
	if err != nil {
		slog.Debug("Config tier unreadable", slog.String("file", file), slog.Any("error", err))
		return "", false
	}
	for _, e := range Parse(data) {
		if e.Valid() && e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// isFalsy matches the firmware's "logically false": empty, or a value whose
// leading integer or leading float is zero. Text such as "off" or "0abc"
// therefore counts as unset.
func isFalsy(v string) bool {
	return strings.TrimSpace(v) == "" || ParseInt(v) == 0 || ParseFloat(v) == 0
}
