// internal/domain/models/screen.go
package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Screen describes one back-office grid: where its rows come from, how
// they are rendered, and which row actions post back to the backend.
//
// Screens are static configuration. Nothing in a Screen is mutated at
// runtime; all mutable state lives in the console that renders it.
type Screen struct {
	Name      string            `yaml:"name" json:"name"`
	Title     string            `yaml:"title" json:"title"`
	KeyFields []string          `yaml:"key_fields" json:"key_fields"`
	List      Endpoint          `yaml:"list" json:"list"`
	Params    map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	PerPage   int               `yaml:"per_page,omitempty" json:"per_page,omitempty"`
	Columns   []Column          `yaml:"columns" json:"columns"`
	Actions   []Action          `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Endpoint names a PHP script under the configured webservices URL.
type Endpoint struct {
	Script    string   `yaml:"script" json:"script"`
	Encrypted bool     `yaml:"encrypted,omitempty" json:"encrypted,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Column describes how a record field becomes a table cell.
type Column struct {
	Name       string   `yaml:"name" json:"name"`
	Field      string   `yaml:"field" json:"field"`
	Width      int      `yaml:"width,omitempty" json:"width,omitempty"`
	Format     string   `yaml:"format,omitempty" json:"format,omitempty"`
	Filterable bool     `yaml:"filterable,omitempty" json:"filterable"`
	Sortable   bool     `yaml:"sortable,omitempty" json:"sortable"`
	// Options labels enum codes. A column with options filters by exact
	// (case-insensitive) match instead of substring.
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Key returns the identifier used for the column in filter and sort
// state. Columns are keyed by field; a column without a field falls back
// to its display name.
func (c Column) Key() string {
	if c.Field != "" {
		return c.Field
	}
	return c.Name
}

// Option is one value of an enum-coded column or form field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Action is a row-scoped verb (approve, reject, edit, delete, status change).
type Action struct {
	Verb          string            `yaml:"verb" json:"verb"`
	Label         string            `yaml:"label" json:"label"`
	Endpoint      Endpoint          `yaml:"endpoint" json:"-"`
	Confirm       string            `yaml:"confirm,omitempty" json:"confirm,omitempty"`
	IDFields      []string          `yaml:"id_fields,omitempty" json:"id_fields,omitempty"`
	Fields        []FormField       `yaml:"fields,omitempty" json:"fields,omitempty"`
	StatusField   string            `yaml:"status_field,omitempty" json:"status_field,omitempty"`
	AllowedStatus []string          `yaml:"allowed_status,omitempty" json:"allowed_status,omitempty"`
	Params        map[string]string `yaml:"params,omitempty" json:"-"`
	Batchable     bool              `yaml:"batchable,omitempty" json:"batchable"`
}

// Form field kinds.
const (
	FieldText   = "text"
	FieldAmount = "amount"
	FieldEnum   = "enum"
	FieldNumber = "number"
)

// FormField is one input of the small inline form an action may show
// (reason text, amount, status radio).
type FormField struct {
	Name     string   `yaml:"name" json:"name"`
	Label    string   `yaml:"label" json:"label"`
	Kind     string   `yaml:"kind,omitempty" json:"kind"`
	Required bool     `yaml:"required,omitempty" json:"required"`
	MaxLen   int      `yaml:"max_len,omitempty" json:"max_len,omitempty"`
	Options  []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Column returns the column keyed by key.
func (s *Screen) Column(key string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Key() == key {
			return c, true
		}
	}
	return Column{}, false
}

// Action returns the action registered for verb.
func (s *Screen) Action(verb string) (Action, bool) {
	for _, a := range s.Actions {
		if a.Verb == verb {
			return a, true
		}
	}
	return Action{}, false
}

// Duration is a time.Duration that reads "30s"-style strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
