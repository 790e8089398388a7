package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"extract", "authcheck", "cookies", "batch", "stats", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestExtractCommandRequiresURL(t *testing.T) {
	c := newExtractCmd()
	err := c.Args(c, []string{})
	require.Error(t, err)

	err = c.Args(c, []string{"https://target.example/watch/42"})
	assert.NoError(t, err)
}

func TestAuthCheckCommandRequiresURL(t *testing.T) {
	c := newAuthCheckCmd()
	assert.Error(t, c.Args(c, nil))
	assert.NoError(t, c.Args(c, []string{"https://target.example/library"}))
}

func TestCookiesCommandFlags(t *testing.T) {
	c := newCookiesCmd()
	require.NotNil(t, c.Flags().Lookup("domain"))
	require.NotNil(t, c.Flags().Lookup("out"))
}

func TestBatchCommandFlags(t *testing.T) {
	c := newBatchCmd()
	require.NotNil(t, c.Flags().Lookup("limit"))
	require.NotNil(t, c.Flags().Lookup("concurrency"))
}
