package hostfuncs

import (
	"strconv"
	"strings"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
)

// Args is the ordered argument list a script passed to a host function.
// Positions are 1-based, matching how scripts count arguments.
type Args struct {
	values []entities.Value
}

// NewArgs builds an argument list.
func NewArgs(values ...entities.Value) Args {
	return Args{values: values}
}

// Len returns the number of arguments passed.
func (a Args) Len() int { return len(a.values) }

// Values returns the arguments in order.
func (a Args) Values() []entities.Value { return a.values }

// At returns argument i, or nil when fewer were passed.
func (a Args) At(i int) entities.Value {
	if i < 1 || i > len(a.values) {
		return entities.Nil()
	}
	return a.values[i-1]
}

// Number returns argument i as a number. Numeric strings are converted.
func (a Args) Number(i int) (float64, error) {
	v := a.At(i)
	if n, ok := v.AsNumber(); ok {
		return n, nil
	}
	if s, ok := v.AsString(); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, nil
		}
	}
	return 0, a.mismatch(i, "number")
}

// Int returns argument i as an integer.
func (a Args) Int(i int) (int64, error) {
	n, err := a.Number(i)
	if err != nil {
		return 0, err
	}
	v, ok := entities.Number(n).AsInt()
	if !ok {
		return 0, &domainerrors.ValueError{Position: i, Expected: "integer", Got: "number"}
	}
	return v, nil
}

// String returns argument i as a string. Numbers are formatted.
func (a Args) String(i int) (string, error) {
	v := a.At(i)
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	if n, ok := v.AsNumber(); ok {
		return entities.FormatNumber(n), nil
	}
	return "", a.mismatch(i, "string")
}

// Bool returns argument i as a boolean.
func (a Args) Bool(i int) (bool, error) {
	b, ok := a.At(i).AsBool()
	if !ok {
		return false, a.mismatch(i, "boolean")
	}
	return b, nil
}

// Table returns argument i if it is a table.
func (a Args) Table(i int) (entities.Value, error) {
	v := a.At(i)
	if v.Kind() != entities.KindTable {
		return entities.Nil(), a.mismatch(i, "table")
	}
	return v, nil
}

func (a Args) mismatch(i int, expected string) error {
	got := "no value"
	if i >= 1 && i <= len(a.values) {
		got = a.values[i-1].Kind().String()
	}
	return &domainerrors.ValueError{Position: i, Expected: expected, Got: got}
}
