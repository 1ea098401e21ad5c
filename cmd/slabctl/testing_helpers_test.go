package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// withFlags sets the global output flags for the duration of a test.
func withFlags(t *testing.T, asJSON bool) {
	t.Helper()
	prevJSON, prevColor, prevQuiet := jsonOut, noColor, quiet
	jsonOut, noColor, quiet = asJSON, true, false
	t.Cleanup(func() {
		jsonOut, noColor, quiet = prevJSON, prevColor, prevQuiet
	})
}

// decodeJSON unmarshals command output into v.
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output: %s", output)
}

func testConfig() allocatorConfig {
	return allocatorConfig{SlabSize: 256 << 10, ZoneSize: 128 << 20}
}
