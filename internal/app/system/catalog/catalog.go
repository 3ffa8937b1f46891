// Package catalog loads the screen descriptions the console renders.
//
// Screens are pure configuration: column specs, a list endpoint and row
// actions. A default set is compiled in; deployments point screens_file at
// their own YAML to replace it.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"gopkg.in/yaml.v3"
)

//go:embed screens.yaml
var defaultScreens []byte

type file struct {
	Screens []models.Screen `yaml:"screens"`
}

// Catalog is an immutable, ordered set of screens.
type Catalog struct {
	screens []*models.Screen
	byName  map[string]*models.Screen
}

// Default returns the compiled-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultScreens)
}

// Load reads the catalog at path, or the default catalog when path is "".
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screens file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog document. Unknown keys are errors.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse screens: %w", err)
	}
	if len(f.Screens) == 0 {
		return nil, errors.New("no screens defined")
	}

	c := &Catalog{byName: make(map[string]*models.Screen, len(f.Screens))}
	var errs []error
	for i := range f.Screens {
		s := &f.Screens[i]
		if err := validate(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byName[s.Name]; dup {
			errs = append(errs, fmt.Errorf("screen %q: defined twice", s.Name))
			continue
		}
		c.byName[s.Name] = s
		c.screens = append(c.screens, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Screen returns the screen named name.
func (c *Catalog) Screen(name string) (*models.Screen, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Screens returns every screen in file order.
func (c *Catalog) Screens() []*models.Screen {
	return slices.Clone(c.screens)
}

var knownFormats = []string{"", grid.FormatText, grid.FormatMoney, grid.FormatDateTime, grid.FormatStatus, grid.FormatURLDecode}

var knownKinds = []string{"", models.FieldText, models.FieldAmount, models.FieldEnum, models.FieldNumber}

func validate(s *models.Screen) error {
	if s.Name == "" {
		return errors.New("screen without a name")
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("screen %q: %s", s.Name, fmt.Sprintf(format, args...))
	}
	if s.List.Script == "" {
		return fail("list.script is required")
	}
	if len(s.KeyFields) == 0 {
		return fail("key_fields is required")
	}
	if s.PerPage != 0 && !paging.ValidPerPage(s.PerPage) {
		return fail("per_page %d is not one of %v", s.PerPage, paging.PerPageOptions)
	}
	if len(s.Columns) == 0 {
		return fail("no columns")
	}
	if s.Title == "" {
		s.Title = s.Name
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		k := col.Key()
		if k == "" {
			return fail("column without name or field")
		}
		if seen[k] {
			return fail("column %q defined twice", k)
		}
		seen[k] = true
		if !slices.Contains(knownFormats, col.Format) {
			return fail("column %q: unknown format %q", k, col.Format)
		}
		if col.Format == grid.FormatStatus && len(col.Options) == 0 {
			return fail("column %q: status format needs options", k)
		}
	}

	verbs := make(map[string]bool, len(s.Actions))
	for i := range s.Actions {
		a := &s.Actions[i]
		if a.Verb == "" {
			return fail("action without a verb")
		}
		if verbs[a.Verb] {
			return fail("action %q defined twice", a.Verb)
		}
		verbs[a.Verb] = true
		if a.Endpoint.Script == "" {
			return fail("action %q: endpoint.script is required", a.Verb)
		}
		if a.Label == "" {
			a.Label = a.Verb
		}
		for _, f := range a.Fields {
			if f.Name == "" {
				return fail("action %q: field without a name", a.Verb)
			}
			if !slices.Contains(knownKinds, f.Kind) {
				return fail("action %q: field %q has unknown kind %q", a.Verb, f.Name, f.Kind)
			}
			if f.Kind == models.FieldEnum && len(f.Options) == 0 {
				return fail("action %q: enum field %q needs options", a.Verb, f.Name)
			}
		}
	}
	return nil
}
