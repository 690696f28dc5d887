package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"custanalytics/ml"
)

// ReadCSV parses an uploaded CSV with a header row. The input is decoded as UTF-8
// unless it starts with a UTF-16 byte order mark; any BOM is dropped.
func ReadCSV(r io.Reader) (*Table, error) {
	return ReadCSVCharset(r, "")
}

// ReadCSVCharset parses an upload in the named charset (for example "latin1" or "gbk").
func ReadCSVCharset(r io.Reader, charset string) (*Table, error) {
	decoded, err := decodeReader(r, charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrMalformedInput, err)
	}

	reader := csv.NewReader(decoded)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", ml.ErrMalformedInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ml.ErrMalformedInput)
	}

	header, err := checkHeader(records[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrMalformedInput, err)
	}
	if len(records) == 1 {
		return nil, fmt.Errorf("%w: file has a header but no rows", ml.ErrMalformedInput)
	}

	table, err := NewTable(header, records[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrMalformedInput, err)
	}
	return table, nil
}

func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// checkHeader names blank header cells "Unnamed: <index>", as pandas does for an
// exported index column, and rejects duplicate names.
func checkHeader(header []string) ([]string, error) {
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, errors.New("header row is empty")
	}
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		names[i] = name
	}
	return names, nil
}
