package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/formfill-cli/internal/config"
	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/formlib"
	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/store"
)

func TestWriteRecords_XLSXNeedsPath(t *testing.T) {
	err := writeRecords(formatXLSX, "", []export.Record{{Data: taskRecord(t, "x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs --out")
}

func TestWriteRecords_Files(t *testing.T) {
	dir := t.TempDir()
	records := []export.Record{{Source: "note.txt", Data: taskRecord(t, "renew passport")}}

	yamlPath := filepath.Join(dir, "out.yaml")
	require.NoError(t, writeRecords(formatYAML, yamlPath, records))
	b, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "name: renew passport")

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, writeRecords(formatXLSX, xlsxPath, records))
	f, err := xlsx.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, formlib.Task, f.Sheets[0].Name)
}

func TestEncodeRecords_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := encodeRecords(&buf, "csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestReadTranscript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("  met Jane at the fair  \n"), 0o644))

	text, err := readTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "met Jane at the fair", text)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte(" \n"), 0o644))
	_, err = readTranscript(empty)
	assert.Error(t, err)

	_, err = readTranscript(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestFillTranscript_UnparseableKeepsEmptyRecord(t *testing.T) {
	env := newTestEnv(t, &scriptedBackend{fallback: "no idea"})
	def, err := formlib.Get(formlib.Task)
	require.NoError(t, err)

	rows, err := fillTranscript(context.Background(), env.Filler, def, "something", fillRequest{})
	require.Error(t, err)
	assert.True(t, isExtractionError(err))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsEmpty())
}

func TestInitFiller(t *testing.T) {
	prevCfg, prevBackend := cfg, newBackend
	t.Cleanup(func() { cfg, newBackend = prevCfg, prevBackend })

	cfg = &config.Config{}
	cfg.Anthropic.Key = "sk-ant-test"
	cfg.Prompt.PrimaryModel = "claude-sonnet-4-5"
	cfg.Cache.Driver = store.DriverMemory
	cfg.Batch.MaxConcurrency = 2
	backend := &scriptedBackend{fallback: `{"name": "water plants"}`}
	newBackend = func() prompt.Backend { return backend }

	env, err := initFiller(context.Background())
	require.NoError(t, err)
	defer env.Close()
	require.NotNil(t, env.Cache)

	def, err := formlib.Get(formlib.Task)
	require.NoError(t, err)
	for range 2 {
		rows, err := fillTranscript(context.Background(), env.Filler, def, "water the plants", fillRequest{})
		require.NoError(t, err)
		assert.Equal(t, "water plants", rows[0].String("name"))
	}
	assert.Equal(t, 1, backend.Calls(), "second run is served from the cache")

	var out bytes.Buffer
	env.Report(&out)
	assert.Contains(t, out.String(), "1 queries to LLMs")
	assert.Contains(t, out.String(), "Estimated cost $")
}

func TestInitFiller_InvalidConfig(t *testing.T) {
	prevCfg := cfg
	t.Cleanup(func() { cfg = prevCfg })

	cfg = &config.Config{}
	cfg.Batch.MaxConcurrency = 2
	_, err := initFiller(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}
