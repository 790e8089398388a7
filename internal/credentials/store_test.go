package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

func writeCookies(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFirstExistingCandidateWins(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.json")
	first := writeCookies(t, dir, "first.json", `[{"name":"svSession","value":"aaa","domain":".target.example"}]`)
	second := writeCookies(t, dir, "second.json", `[{"name":"other","value":"bbb","domain":".target.example"}]`)

	store := NewStore(config.CredentialsConfig{
		CandidatePaths: []string{missing, first, second},
	}, zap.NewNop())

	creds, err := store.Load()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	// No merging across locations: only the first existing file is read.
	assert.Equal(t, "svSession", creds[0].Name)
}

func TestLoadMissingEverywhereIsSoft(t *testing.T) {
	store := NewStore(config.CredentialsConfig{
		CandidatePaths: []string{filepath.Join(t.TempDir(), "nope.json")},
	}, zap.NewNop())

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestLoadExplicitFileOverridesCandidates(t *testing.T) {
	dir := t.TempDir()
	explicit := writeCookies(t, dir, "explicit.json", `[{"name":"hs","value":"v"}]`)
	candidate := writeCookies(t, dir, "candidate.json", `[{"name":"bSession","value":"v"}]`)

	store := NewStore(config.CredentialsConfig{
		File:           explicit,
		CandidatePaths: []string{candidate},
	}, zap.NewNop())

	creds, err := store.Load()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "hs", creds[0].Name)
}

func TestLoadMalformedFileIsHard(t *testing.T) {
	dir := t.TempDir()
	bad := writeCookies(t, dir, "bad.json", `{"not":"an array"`)

	store := NewStore(config.CredentialsConfig{CandidatePaths: []string{bad}}, zap.NewNop())

	_, err := store.Load()
	assert.Error(t, err)
}

func TestDedupeLastWinsStableOrder(t *testing.T) {
	creds := dedupe([]schemas.Credential{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
		{Name: "a", Value: "3"},
		{Name: "c", Value: "4"},
	})

	require.Len(t, creds, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{creds[0].Name, creds[1].Name, creds[2].Name})
	assert.Equal(t, "3", creds[0].Value, "later duplicate value wins")
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	in := []schemas.Credential{{Name: "XSRF-TOKEN", Value: "tok", Domain: ".target.example", Path: "/", Secure: true}}

	require.NoError(t, WriteFile(path, in))

	store := NewStore(config.CredentialsConfig{File: path}, zap.NewNop())
	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
