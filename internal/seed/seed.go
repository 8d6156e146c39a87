// Package seed loads YAML fixtures into the mock store.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tourdesk/internal/record"
)

//go:embed default.yaml
var defaultFixtures []byte

// Fixtures is a named data set: table rows plus the accounts that can
// sign in against the mock adapter.
type Fixtures struct {
	Name        string                      `yaml:"name"`
	Description string                      `yaml:"description,omitempty"`
	Users       []User                      `yaml:"users,omitempty"`
	Tables      map[string][]map[string]any `yaml:"tables"`
}

// User is a seeded account. Password is plain text and hashed on load.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Name     string `yaml:"name,omitempty"`
}

// Default returns the built-in demo data set.
func Default() *Fixtures {
	f, err := Parse(defaultFixtures)
	if err != nil {
		panic(fmt.Sprintf("seed: built-in fixtures are invalid: %v", err))
	}
	return f
}

// LoadFile reads fixtures from a YAML file.
func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixtures, rejecting unknown keys.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	seen := make(map[string]bool)
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: email and password are required", i)
		}
		if seen[u.Email] {
			return fmt.Errorf("users[%d]: duplicate email %s", i, u.Email)
		}
		seen[u.Email] = true
	}
	for _, table := range f.TableNames() {
		for i, row := range f.Tables[table] {
			if _, ok := row[record.IDField]; !ok {
				return fmt.Errorf("tables.%s[%d]: id is required", table, i)
			}
		}
	}
	return nil
}

// TableNames returns the fixture's table names, sorted.
func (f *Fixtures) TableNames() []string {
	names := make([]string, 0, len(f.Tables))
	for name := range f.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records converts the table rows to records, keeping row order.
func (f *Fixtures) Records() (map[string][]record.Record, error) {
	out := make(map[string][]record.Record, len(f.Tables))
	for _, table := range f.TableNames() {
		rows := f.Tables[table]
		recs := make([]record.Record, 0, len(rows))
		for i, row := range rows {
			r, err := record.FromMap(row)
			if err != nil {
				return nil, fmt.Errorf("tables.%s[%d]: %w", table, i, err)
			}
			recs = append(recs, r)
		}
		out[table] = recs
	}
	return out, nil
}
