package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/service"
)

func writeReport(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunAnalyze_Summary(t *testing.T) {
	color.NoColor = true
	path := writeReport(t, "labs.txt", "Glucose: 250 mg/dL (Normal: 70-100)")

	var out bytes.Buffer
	err := runAnalyze(context.Background(), service.NewReportService(nil, nil), path, "full", false, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Format: tabular")
	assert.Contains(t, text, "Glucose")
	assert.Contains(t, text, "!")
	assert.Contains(t, text, "Health score:")
	assert.Contains(t, text, "rule-based")
}

func TestRunAnalyze_JSONExtractMode(t *testing.T) {
	path := writeReport(t, "labs.txt", "Glucose: 250 mg/dL (Normal: 70-100)")

	var out bytes.Buffer
	err := runAnalyze(context.Background(), service.NewReportService(nil, nil), path, "extract", true, &out)
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotContains(t, resp, "analysis")
	assert.Contains(t, resp, "healthScore")
}

func TestRunAnalyze_Errors(t *testing.T) {
	svc := service.NewReportService(nil, nil)

	err := runAnalyze(context.Background(), svc, filepath.Join(t.TempDir(), "missing.txt"), "full", false, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to read")

	path := writeReport(t, "labs.txt", "Glucose: 90 mg/dL")
	err = runAnalyze(context.Background(), svc, path, "summary", false, &bytes.Buffer{})
	assert.ErrorIs(t, err, service.ErrInvalidMode)
}

func TestRunClassify(t *testing.T) {
	color.NoColor = true
	decoder := extraction.NewDecoder(nil, 0, nil)

	tests := []struct {
		name   string
		file   string
		body   string
		format string
	}{
		{"json labs", "report.json", `{"labResults": [{"parameter": "Glucose", "value": 90, "unit": "mg/dL"}]}`, "structured"},
		{"annotated value", "labs.txt", "Glucose: 250 mg/dL (Normal: 70-100)", "tabular"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runClassify(context.Background(), decoder, writeReport(t, tt.file, tt.body), &out))
			assert.Contains(t, out.String(), "Format:        "+tt.format)
		})
	}
}
