// Package export writes stored rows to CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"github.com/rotisserie/eris"
)

// Format represents the export format.
type Format string

const (
	// FormatCSV writes a header row followed by one row per element.
	FormatCSV Format = "csv"
	// FormatJSON writes a JSON array.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("unsupported export format: %s", s)
	}
}

// Options holds configuration for file exports.
type Options struct {
	Format     Format
	FilePath   string
	PrettyJSON bool
	Overwrite  bool
}

// ToFile writes rows to opts.FilePath. rows must be a slice of structs.
func ToFile(rows any, opts Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return eris.Wrap(err, "failed to create directory")
	}
	if _, statErr := os.Stat(opts.FilePath); statErr == nil && !opts.Overwrite {
		return eris.Errorf("file already exists: %s (use overwrite option to replace)", opts.FilePath)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return eris.Wrap(err, "failed to create file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "failed to close file")
		}
	}()

	return Write(f, opts.Format, rows, opts.PrettyJSON)
}

// Write writes rows to w in the given format. rows must be a slice of structs.
func Write(w io.Writer, format Format, rows any, prettyJSON bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if prettyJSON {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(rows); err != nil {
			return eris.Wrap(err, "failed to encode JSON")
		}
		return nil
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return eris.Errorf("unsupported export format: %s", format)
	}
}

func writeCSV(w io.Writer, rows any) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return eris.Errorf("CSV export requires a slice, got %s", v.Kind())
	}
	elem := v.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return eris.New("CSV export requires a slice of structs")
	}

	fields := csvFields(elem)
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "failed to write CSV header")
	}
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		if row.Kind() == reflect.Pointer {
			if row.IsNil() {
				continue
			}
			row = row.Elem()
		}
		record := make([]string, len(fields))
		for j, f := range fields {
			record[j] = formatValue(row.Field(f.index))
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "failed to write CSV row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "failed to flush CSV")
	}
	return nil
}

type csvField struct {
	index int
	name  string
}

// csvFields lists exported fields, named by their csv tag when present.
// Fields tagged csv:"-" are skipped.
func csvFields(t reflect.Type) []csvField {
	var out []csvField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("csv")
		if !f.IsExported() || tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		out = append(out, csvField{index: i, name: name})
	}
	return out
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return ""
	}
}
