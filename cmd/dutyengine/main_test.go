package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/duty-engine/api"
	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

const shortRestLog = `{
  "duties": [
    {"kind": "FDP", "report": "2025-03-10T14:30", "off": "2025-03-10T23:30", "sectors": 3},
    {"kind": "FDP", "report": "2025-03-11T06:00", "off": "2025-03-11T16:00", "sectors": 4}
  ],
  "sleep": [
    {"start": "2025-03-11T00:30", "end": "2025-03-11T04:30", "type": "main", "quality": 2}
  ]
}`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DUTY_CONFIG", "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_TextReport(t *testing.T) {
	// GIVEN: A log with 6h30 rest at home between two duties
	path := writeLog(t, shortRestLog)

	// WHEN: Checking it
	out, err := runCLI(t, "check", "--file", path, "--at", "2025-03-11T18:00")

	// THEN: The bad rest is printed alongside the rolling picture
	require.NoError(t, err)
	assert.Contains(t, out, "Rolling picture at 2025-03-11T18:00")
	assert.Contains(t, out, "BAD")
	assert.Contains(t, out, "Rest 6:30 / min 12:00")
	assert.Contains(t, out, "fatigue")
}

func TestCheck_StrictFailsOnBad(t *testing.T) {
	path := writeLog(t, shortRestLog)

	_, err := runCLI(t, "check", "--file", path, "--at", "2025-03-11T18:00", "--strict")
	assert.ErrorIs(t, err, errViolations)
}

func TestCheck_JSONReport(t *testing.T) {
	path := writeLog(t, shortRestLog)

	out, err := runCLI(t, "check", "--file", path, "--at", "2025-03-11T18:00", "--json")
	require.NoError(t, err)

	var report api.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Duties, 2)
	assert.Equal(t, "duty-2", report.Duties[0].Duty.ID)
	assert.Equal(t, "duty-1", report.Duties[0].PreviousID)

	rest, ok := report.Duties[0].Badges.Get(duty.KeyRest)
	require.True(t, ok)
	assert.Equal(t, generic.SeverityBad, rest.Severity)
	assert.Equal(t, generic.SeverityBad, report.Worst())
}

func TestCheck_InvalidLog(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"duties": [`},
		{"unknown kind", `{"duties": [{"kind": "Nap", "date": "2025-03-10"}]}`},
		{"off before report", `{"duties": [{"kind": "FDP", "report": "2025-03-10T19:00", "off": "2025-03-10T07:00"}]}`},
		{"bad sleep quality", `{"duties": [], "sleep": [{"start": "2025-03-10T22:00", "end": "2025-03-11T06:00", "type": "main", "quality": 0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "check", "--file", writeLog(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestCheck_RequiresFile(t *testing.T) {
	_, err := runCLI(t, "check")
	assert.Error(t, err)
}
