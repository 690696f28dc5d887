package pipeline

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"custanalytics/ml"
)

// Entry is a single manually entered row.
type Entry struct {
	Table *Table
	// Defaulted lists the schema fields that were not supplied and took their default.
	Defaulted []string
}

// Normalizer turns uploads and form entries into tables ready for dispatch.
type Normalizer struct {
	schema    ml.Schema
	validator *Validator
}

// NewNormalizer returns a normalizer; a nil validator passes uploads through unchecked.
func NewNormalizer(schema ml.Schema, validator *Validator) *Normalizer {
	return &Normalizer{schema: schema, validator: validator}
}

func (n *Normalizer) Schema() ml.Schema { return n.schema }

// Batch reads an upload. Extra columns are kept.
func (n *Normalizer) Batch(r io.Reader, charset string) (*Table, error) {
	table, err := ReadCSVCharset(r, charset)
	if err != nil {
		return nil, err
	}
	if n.validator != nil {
		if err := n.validator.Validate(table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Manual builds one row from entered fields.
func (n *Normalizer) Manual(fields map[string]string) (*Entry, error) {
	return ManualEntry(n.schema, fields)
}

// ManualEntry builds exactly one row with a value for every schema column.
// Blank or absent numeric fields become 0, blank or absent categorical fields
// become "Unknown". Fields outside the schema are ignored.
func ManualEntry(schema ml.Schema, fields map[string]string) (*Entry, error) {
	header := schema.Columns()
	record := make([]string, 0, len(header))
	var defaulted []string

	for _, column := range schema.Numeric {
		raw := strings.TrimSpace(fields[column])
		if raw == "" {
			defaulted = append(defaulted, column)
			record = append(record, formatNumber(ml.DefaultNumeric))
			continue
		}
		value, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %q is not a number", ml.ErrMalformedInput, column, raw)
		}
		record = append(record, formatNumber(value))
	}
	for _, column := range schema.Categorical {
		raw := strings.TrimSpace(fields[column])
		if raw == "" {
			defaulted = append(defaulted, column)
			raw = ml.DefaultCategorical
		}
		record = append(record, raw)
	}

	table, err := NewTable(header, [][]string{record})
	if err != nil {
		return nil, err
	}
	return &Entry{Table: table, Defaulted: defaulted}, nil
}

// parseNumber accepts finite decimal values only; NaN and Inf are rejected.
func parseNumber(raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("value is not finite")
	}
	return value, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
