package metadata

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding names accepted for the tabular sources.
const (
	EncodingWindows1252 = "windows-1252"
	EncodingUTF8        = "utf-8"
)

// table is a parsed CSV keyed by header name.
type table struct {
	header map[string]int
	rows   [][]string
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", EncodingWindows1252, "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case EncodingUTF8, "utf8":
		return r, nil
	default:
		return nil, errors.Errorf("unsupported encoding %q", encoding)
	}
}

func readTable(r io.Reader, encoding string, required ...string) (*table, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.New("missing header row")
	}

	t := &table{header: make(map[string]int, len(records[0])), rows: records[1:]}
	for i, name := range records[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.header[name] = i
	}
	for _, name := range required {
		if _, ok := t.header[name]; !ok {
			return nil, errors.Errorf("missing column %q", name)
		}
	}
	return t, nil
}

// get returns the named cell of row i, or "" when the column is absent.
func (t *table) get(i int, column string) string {
	idx, ok := t.header[column]
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return t.rows[i][idx]
}
