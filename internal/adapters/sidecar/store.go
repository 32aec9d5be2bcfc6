// Package sidecar persists the ordered test cases of a source file in a JSON
// file next to it: /path/to/main.cpp owns /path/to/main.json.
package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
)

// record is the on-disk shape. Ids are positional and never stored.
type record struct {
	Name     string `json:"name"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Store loads and saves sidecars.
type Store struct {
	writer *safefile.Writer
	log    *logging.Logger
}

// New creates a Store that writes through w. A nil w uses a default writer.
func New(w *safefile.Writer, log *logging.Logger) *Store {
	if w == nil {
		w = safefile.New()
	}
	return &Store{writer: w, log: log}
}

// Path returns the sidecar path for a source file.
func Path(source string) string {
	dir := filepath.Dir(source)
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, name+".json")
}

// Exists reports whether source already has a sidecar.
func (s *Store) Exists(source string) bool {
	_, err := os.Stat(Path(source))
	return err == nil
}

// Load returns the cases for source. A missing sidecar is created as an
// empty list.
func (s *Store) Load(source string) ([]testcase.Case, error) {
	path := Path(source)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		created, err := createEmpty(path)
		if err != nil {
			return nil, fmt.Errorf("create sidecar: %w", err)
		}
		if created {
			s.log.Debug("sidecar created", "path", path)
			return []testcase.Case{}, nil
		}
		// Lost the race to another creator; read what it wrote.
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sidecar: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}

	// A zero-byte file is what a concurrent creator leaves between its
	// O_EXCL create and the "[]" write.
	if len(bytes.TrimSpace(data)) == 0 {
		return []testcase.Case{}, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fault.Wrap(fault.InvalidArgument, err, "parse sidecar %s", path)
	}

	cases := make([]testcase.Case, len(records))
	for i, r := range records {
		cases[i] = testcase.Case{Name: r.Name, Input: r.Input, Expected: r.Expected}
	}
	return testcase.AssignIDs(cases), nil
}

// Save replaces the sidecar for source with cases.
func (s *Store) Save(source string, cases []testcase.Case) error {
	records := make([]record, len(cases))
	for i, c := range cases {
		records[i] = record{Name: c.Name, Input: c.Input, Expected: c.Expected}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}

	path := Path(source)
	if err := s.writer.Write(path, data); err != nil {
		return err
	}
	s.log.Debug("sidecar saved", "path", path, "cases", len(cases))
	return nil
}

// Add appends a case and saves. It returns the updated list.
func (s *Store) Add(source, input, expected string) ([]testcase.Case, error) {
	cases, err := s.Load(source)
	if err != nil {
		return nil, err
	}
	cases = testcase.Append(cases, input, expected)
	if err := s.Save(source, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// Delete removes the case with id, renumbers the rest and saves.
func (s *Store) Delete(source, id string) ([]testcase.Case, error) {
	cases, err := s.Load(source)
	if err != nil {
		return nil, err
	}
	cases, ok := testcase.Delete(cases, id)
	if !ok {
		return nil, fault.New(fault.NotFound, "no test %q", id)
	}
	if err := s.Save(source, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// Update replaces the input and expected output of the case with id.
func (s *Store) Update(source, id, input, expected string) ([]testcase.Case, error) {
	cases, err := s.Load(source)
	if err != nil {
		return nil, err
	}
	i := testcase.Find(cases, id)
	if i < 0 {
		return nil, fault.New(fault.NotFound, "no test %q", id)
	}
	cases[i].Input = input
	cases[i].Expected = expected
	if err := s.Save(source, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// createEmpty writes "[]" to path unless it already exists. It reports
// whether this call created the file.
func createEmpty(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.WriteString("[]"); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
