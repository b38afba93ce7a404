package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	specsDir      = filepath.Join("testdata", "specs")
	directoryFile = filepath.Join("testdata", "directory.yaml")
	scenariosDir  = filepath.Join("testdata", "scenarios")
)

// run executes cmd with args and returns what it wrote to stdout.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decode parses a JSON CLIResponse and re-decodes its data into out.
func decode(t *testing.T, output string, out any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	if out != nil && resp.Data != nil {
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return resp
}

func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }
func textOpts() *RootOptions { return &RootOptions{Format: "text"} }

// loadDirectory saves testdata/directory.yaml into a fresh database and
// returns its path with the reference of every fact by id.
func loadDirectory(t *testing.T) (string, map[string]string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "facts.db")
	out, err := run(t, NewLoadCommand(jsonOpts()), "--db", db, directoryFile)
	require.NoError(t, err, out)

	var summary LoadSummary
	decode(t, out, &summary)
	refs := map[string]string{}
	for _, f := range summary.Facts {
		refs[f.ID] = f.Reference
	}
	return db, refs
}
