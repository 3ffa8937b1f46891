package dispatch

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/paydesk/internal/domain/models"
)

// DefaultStatusField is the record field checked against an action's
// AllowedStatus when the action does not name one.
const DefaultStatusField = "status"

// ValidationError is a client-side rejection. No request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IDFields returns the record fields that identify a row for act.
func IDFields(screen *models.Screen, act models.Action) []string {
	if len(act.IDFields) > 0 {
		return act.IDFields
	}
	return screen.KeyFields
}

// CheckRow enforces the row precondition of act: the identifying fields
// are present, and the row's status is one the action accepts.
func CheckRow(screen *models.Screen, act models.Action, target models.Record) error {
	for _, f := range IDFields(screen, act) {
		if strings.TrimSpace(target.String(f)) == "" {
			return invalid(f, "Row has no %s.", f)
		}
	}
	if len(act.AllowedStatus) == 0 {
		return nil
	}
	field := act.StatusField
	if field == "" {
		field = DefaultStatusField
	}
	status := target.String(field)
	if slices.Contains(act.AllowedStatus, status) {
		return nil
	}
	return invalid(field, "%s is not available for a row with status %s.", actionLabel(act), statusLabel(screen, field, status))
}

// CheckForm validates operator input against the action's form fields.
func CheckForm(act models.Action, form map[string]string) error {
	for _, f := range act.Fields {
		v := strings.TrimSpace(form[f.Name])
		label := f.Label
		if label == "" {
			label = f.Name
		}
		if v == "" {
			if f.Required {
				return invalid(f.Name, "%s is required.", label)
			}
			continue
		}
		if f.MaxLen > 0 && utf8.RuneCountInString(v) > f.MaxLen {
			return invalid(f.Name, "%s must be at most %d characters.", label, f.MaxLen)
		}
		switch f.Kind {
		case models.FieldAmount:
			if !positiveDecimal(v) {
				return invalid(f.Name, "%s must be a positive amount.", label)
			}
		case models.FieldNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return invalid(f.Name, "%s must be a number.", label)
			}
		case models.FieldEnum:
			if !slices.ContainsFunc(f.Options, func(o models.Option) bool { return o.Value == v }) {
				return invalid(f.Name, "Please select a valid %s.", strings.ToLower(label))
			}
		}
	}
	return nil
}

// Validate runs CheckRow then CheckForm.
func Validate(screen *models.Screen, act models.Action, target models.Record, form map[string]string) error {
	if err := CheckRow(screen, act, target); err != nil {
		return err
	}
	return CheckForm(act, form)
}

// positiveDecimal accepts plain decimals with at most two fraction digits.
func positiveDecimal(s string) bool {
	s = strings.ReplaceAll(s, ",", "")
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && !hasDot {
		return false
	}
	if hasDot && (len(frac) == 0 || len(frac) > 2) {
		return false
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f > 0 && !math.IsInf(f, 0)
}

func actionLabel(act models.Action) string {
	if act.Label != "" {
		return act.Label
	}
	return act.Verb
}

func statusLabel(screen *models.Screen, field, value string) string {
	if col, ok := screen.Column(field); ok {
		for _, o := range col.Options {
			if o.Value == value {
				return o.Label
			}
		}
	}
	if value == "" {
		return "(none)"
	}
	return value
}
