// Package export writes filled form records as spreadsheets, YAML or JSON.
package export

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/formfill-cli/internal/form"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// Record is one filled form together with where it came from.
type Record struct {
	Source string
	Data   *form.Data
}

// WriteXLSX writes records as a workbook with one sheet per form. Each
// sheet has a header row of field labels followed by one row per record,
// with values rendered the way they are displayed to humans.
func WriteXLSX(w io.Writer, records []Record) error {
	f, err := buildWorkbook(records)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// SaveXLSX is WriteXLSX to a file path.
func SaveXLSX(path string, records []Record) error {
	f, err := buildWorkbook(records)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func buildWorkbook(records []Record) (*xlsx.File, error) {
	groups := make(map[string][]Record)
	for _, r := range records {
		if r.Data == nil {
			continue
		}
		name := r.Data.Definition().Name()
		groups[name] = append(groups[name], r)
	}
	if len(groups) == 0 {
		return nil, eris.New("xlsx: no records to export")
	}

	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	f := xlsx.NewFile()
	for _, name := range names {
		sheet, err := f.AddSheet(sheetName(name))
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
		}
		writeSheet(sheet, groups[name])
	}
	return f, nil
}

func writeSheet(sheet *xlsx.Sheet, records []Record) {
	header := sheet.AddRow()
	header.AddCell().SetString("Source")
	for _, t := range records[0].Data.ToDisplayTuples() {
		header.AddCell().SetString(t.Label)
	}
	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Source)
		for _, t := range r.Data.ToDisplayTuples() {
			row.AddCell().SetString(t.Value)
		}
	}
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}

// Document is the serialized shape of one exported record.
type Document struct {
	Source  string              `json:"source,omitempty" yaml:"source,omitempty"`
	Form    string              `json:"form" yaml:"form"`
	Values  map[string]any      `json:"values" yaml:"values"`
	Display []form.DisplayTuple `json:"display" yaml:"display"`
}

// NewDocument converts a record to its serialized shape.
func NewDocument(r Record) Document {
	return Document{
		Source:  r.Source,
		Form:    r.Data.Definition().Name(),
		Values:  r.Data.ToDict(),
		Display: r.Data.ToDisplayTuples(),
	}
}

// Documents converts records to their serialized shape, skipping records
// without data.
func Documents(records []Record) []Document {
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		if r.Data == nil {
			continue
		}
		docs = append(docs, NewDocument(r))
	}
	return docs
}

// WriteYAML writes records as a YAML list of documents.
func WriteYAML(w io.Writer, records []Record) error {
	return Encode(w, Documents(records))
}

// WriteJSON writes records as an indented JSON array of documents.
func WriteJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(Documents(records)), "json: encode")
}

// Encode writes v as YAML with two space indentation.
func Encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "yaml: encode")
	}
	return eris.Wrap(enc.Close(), "yaml: flush")
}

// DefinitionSchema is the serialized shape of a form definition.
type DefinitionSchema struct {
	Name   string           `json:"name" yaml:"name"`
	Fields []form.FieldSpec `json:"fields" yaml:"fields"`
}

// Schema converts def to its serialized shape.
func Schema(def *form.Definition) DefinitionSchema {
	return DefinitionSchema{Name: def.Name(), Fields: def.Specs()}
}

// Create opens path for writing, or returns stdout for "" and "-". The
// returned close func is always safe to call.
func Create(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "export: create %s", path)
	}
	return f, f.Close, nil
}
