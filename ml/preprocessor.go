package ml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// NumericFeature is a standard-scaled numeric input: (x - Mean) / Scale.
type NumericFeature struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// CategoricalFeature is one-hot encoded over Categories in the given order.
type CategoricalFeature struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Encoder maps a named row to the dense vector a model was fitted on.
// Numeric features come first, then one block per categorical feature.
type Encoder struct {
	Numeric       []NumericFeature     `json:"numeric"`
	Categorical   []CategoricalFeature `json:"categorical"`
	HandleUnknown string               `json:"handle_unknown"`

	index []map[string]int
}

func (e *Encoder) init() error {
	switch e.HandleUnknown {
	case "":
		e.HandleUnknown = HandleUnknownIgnore
	case HandleUnknownIgnore, HandleUnknownError:
	default:
		return fmt.Errorf("unsupported handle_unknown %q", e.HandleUnknown)
	}
	if len(e.Numeric) == 0 && len(e.Categorical) == 0 {
		return errors.New("encoder has no features")
	}

	seen := make(map[string]bool)
	for _, feature := range e.Numeric {
		if feature.Name == "" {
			return errors.New("numeric feature without name")
		}
		if seen[feature.Name] {
			return fmt.Errorf("duplicate feature %s", feature.Name)
		}
		seen[feature.Name] = true
	}
	e.index = make([]map[string]int, len(e.Categorical))
	for i, feature := range e.Categorical {
		if feature.Name == "" {
			return errors.New("categorical feature without name")
		}
		if seen[feature.Name] {
			return fmt.Errorf("duplicate feature %s", feature.Name)
		}
		seen[feature.Name] = true
		if len(feature.Categories) == 0 {
			return fmt.Errorf("categorical feature %s has no categories", feature.Name)
		}
		lookup := make(map[string]int, len(feature.Categories))
		for j, category := range feature.Categories {
			lookup[category] = j
		}
		e.index[i] = lookup
	}
	return nil
}

// Width is the length of an encoded vector.
func (e *Encoder) Width() int {
	width := len(e.Numeric)
	for _, feature := range e.Categorical {
		width += len(feature.Categories)
	}
	return width
}

// Encode builds the vector for one row of the frame.
func (e *Encoder) Encode(frame Frame, row int) ([]float64, error) {
	vector := make([]float64, e.Width())
	for i, feature := range e.Numeric {
		raw, ok := frame.Value(row, feature.Name)
		if !ok {
			return nil, fmt.Errorf("missing column %s", feature.Name)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: column %s: %q is not a number", row, feature.Name, raw)
		}
		vector[i] = scaleValue(value, feature.Mean, feature.Scale)
	}

	offset := len(e.Numeric)
	for i, feature := range e.Categorical {
		raw, ok := frame.Value(row, feature.Name)
		if !ok {
			return nil, fmt.Errorf("missing column %s", feature.Name)
		}
		idx, found := e.lookup(i, strings.TrimSpace(raw))
		if found {
			vector[offset+idx] = 1
		} else if e.HandleUnknown == HandleUnknownError {
			return nil, fmt.Errorf("row %d: column %s: unseen category %q", row, feature.Name, raw)
		}
		offset += len(feature.Categories)
	}
	return vector, nil
}

// lookup matches a category exactly, then numerically so "29" and "29.0" agree.
func (e *Encoder) lookup(feature int, value string) (int, bool) {
	if idx, ok := e.index[feature][value]; ok {
		return idx, true
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	for j, category := range e.Categorical[feature].Categories {
		if parsed, err := strconv.ParseFloat(category, 64); err == nil && parsed == number {
			return j, true
		}
	}
	return 0, false
}

func scaleValue(value, mean, scale float64) float64 {
	if scale == 0 {
		scale = 1
	}
	return (value - mean) / scale
}
