package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-consensus/internal/model"
)

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	stats := model.BatchStats{Total: 2, Succeeded: 1, Failed: 1, Elapsed: time.Second}
	require.NoError(t, writeResult(&buf, "json", stats))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.EqualValues(t, 2, got["total"])
	assert.EqualValues(t, time.Second.Nanoseconds(), got["elapsed_ns"])
}

func TestWriteResult_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	result := &model.BatchResult{
		ID: "b-1",
		Results: []model.LeadResult{
			{Index: 0, LeadID: "L-1", Status: model.ResultError, Error: "boom", Decision: "error", Action: "retry"},
		},
		Stats: model.BatchStats{Total: 1, Failed: 1},
	}
	require.NoError(t, writeResult(&buf, "yaml", result))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "b-1", got["id"])
	results, ok := got["results"].([]any)
	require.True(t, ok)
	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "L-1", first["lead_id"])
	assert.Equal(t, "retry", first["action"])
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	err := writeResult(&bytes.Buffer{}, "xml", map[string]string{})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestRunLeads(t *testing.T) {
	t.Cleanup(func() {
		runInput = ""
		runLead = model.Lead{}
	})
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	runInput, runLead = "", model.Lead{}
	_, err := runLeads(cmd)
	assert.ErrorContains(t, err, "--input")

	runLead = model.Lead{ID: "L-1", Name: "Padaria", Address: "Rua 1", Phone: "nan", Email: " a@b.com "}
	leads, err := runLeads(cmd)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Empty(t, leads[0].Phone)
	assert.Equal(t, "a@b.com", leads[0].Email)

	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,address\n1,A,Rua 1\n2,B,Rua 2\n"), 0644))
	runInput = path
	leads, err = runLeads(cmd)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}
