package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"analyze"},
		{"collection", "download"},
		{"collection", "compile"},
		{"collection", "render"},
		{"collection", "export"},
		{"bigquery", "ingest"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name(), path)
	}
}

func TestFlagDefaults(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbosity")
	require.NotNil(t, flag)
	assert.Equal(t, "info", flag.DefValue)

	flag = analyzeCmd.Flags().Lookup("utf16-offsets")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)

	flag = exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "cover", flag.DefValue)

	require.NotNil(t, collectionCmd.PersistentFlags().Lookup("collection"))
	require.NotNil(t, bigqueryCmd.PersistentFlags().Lookup("project"))
	require.NotNil(t, ingestCmd.Flags().Lookup("url"))
}
