// internal/params/store.go
package params

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Store is the raw key/value view of a configuration file. Keys are
// normalised (see NormalizeKey); values are trimmed.
type Store struct {
	Path   string
	values map[string]string
	order  []string
}

// Load reads a tab-delimited configuration file: key<TAB>value per line.
// Blank lines and lines starting with '#' are skipped. A repeated key
// replaces the earlier value.
func Load(path string) (*Store, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	s, err := Parse(fh, path)
	if err != nil {
		return nil, err
	}
	s.Path = path
	return s, nil
}

// Parse reads a configuration from r; name is used in error messages.
func Parse(r io.Reader, name string) (*Store, error) {
	s := &Store{values: map[string]string{}}
	sc := bufio.NewScanner(r)
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		f := strings.SplitN(line, "\t", 3)
		if len(f) < 2 {
			return nil, fmt.Errorf("%s:%d expected key<TAB>value", name, ln)
		}
		key := NormalizeKey(f[0])
		if key == "" {
			return nil, fmt.Errorf("%s:%d empty key", name, ln)
		}
		s.Set(key, f[1])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// NormalizeKey trims whitespace and one trailing ':' so that
// "Number of threads:" and "Number of threads" address the same entry.
func NormalizeKey(k string) string {
	k = strings.TrimSpace(k)
	k = strings.TrimSuffix(k, ":")
	return strings.TrimSpace(k)
}

// Set stores value under key.
func (s *Store) Set(key, value string) {
	key = NormalizeKey(key)
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = strings.TrimSpace(value)
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[NormalizeKey(key)]
	return v, ok
}

// Keys lists keys in first-seen order.
func (s *Store) Keys() []string { return append([]string(nil), s.order...) }

// Require returns a MissingKeyError naming every key of keys that is absent
// or empty.
func (s *Store) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if v, ok := s.Get(k); !ok || v == "" {
			missing = append(missing, NormalizeKey(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingKeyError{Keys: missing}
	}
	return nil
}

// MissingKeyError reports required configuration keys that are absent.
type MissingKeyError struct {
	Keys []string
}

func (e *MissingKeyError) Error() string {
	return "missing configuration key(s): " + strings.Join(e.Keys, ", ")
}
