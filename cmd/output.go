package main

import (
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/formfill-cli/internal/export"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatXLSX = "xlsx"
)

// writeRecords writes records in format to path, or stdout when path is
// empty. Spreadsheets need a file path.
func writeRecords(format, path string, records []export.Record) error {
	if format == formatXLSX {
		if path == "" || path == "-" {
			return eris.New("xlsx output needs --out")
		}
		return export.SaveXLSX(path, records)
	}

	w, closeFn, err := export.Create(path)
	if err != nil {
		return err
	}
	if err := encodeRecords(w, format, records); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

func encodeRecords(w io.Writer, format string, records []export.Record) error {
	switch format {
	case formatJSON:
		return export.WriteJSON(w, records)
	case formatYAML:
		return export.WriteYAML(w, records)
	case formatXLSX:
		return export.WriteXLSX(w, records)
	default:
		return eris.Errorf("unknown output format %q (want json, yaml or xlsx)", format)
	}
}
