package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

// A stylesheet whose first rule is used and a script that analysis drops.
var sampleEntries = []coverage.Entry[coverage.Resource]{
	{
		URL:    "https://example.com/static/site.css",
		Text:   "a{color:red}b{color:blue}",
		Ranges: []coverage.Range[coverage.Resource]{{Start: 0, End: 12}},
	},
	{
		URL:    "https://example.com/app.js",
		Text:   "console.log(1)",
		Ranges: []coverage.Range[coverage.Resource]{{Start: 0, End: 14}},
	},
}

func quietLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.New(log.ErrorLevel, "")
	require.NoError(t, err)
	logger.SetOutput(io.Discard, io.Discard)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func writeDump(t *testing.T, dir, name string, entries []coverage.Entry[coverage.Resource]) string {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	return writeFile(t, dir, name, string(data))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}
