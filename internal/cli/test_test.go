package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenarios copies testdata/scenarios into a fresh directory so tests
// may rewrite golden files.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range []string{"open_offices.yaml", filepath.Join("golden", "open_offices.golden")} {
		data, err := os.ReadFile(filepath.Join(scenariosDir, rel))
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, rel)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), data, 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := run(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	out, err := run(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := run(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := run(t, NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)

	var result TestResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Total)
}

func TestTestCommandPasses(t *testing.T) {
	out, err := run(t, NewTestCommand(textOpts()), scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ open_offices")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	golden := filepath.Join(dir, "golden", "open_offices.golden")
	require.NoError(t, os.WriteFile(golden, []byte("scenario: open_offices\n"), 0o644))

	out, err := run(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.Contains(t, strings.Join(result.Scenarios[0].Errors, "\n"), "does not match golden file")

	// --update rewrites the golden file, after which the scenario passes.
	_, err = run(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(scenariosDir, "golden", "open_offices.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, err = run(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)
}

func TestTestCommandReportsBrokenScenario(t *testing.T) {
	dir := copyScenarios(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := run(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "✓ open_offices")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"open_offices.yaml", "manager_names.yml", "notes.txt", filepath.Join("nested", "closures.yaml"), filepath.Join("golden", "open_offices.yaml")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "manager_names.yml"),
		filepath.Join(dir, "nested", "closures.yaml"),
		filepath.Join(dir, "open_offices.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "{open,manager}_*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "open_offices.golden"),
		goldenFilePath(filepath.Join("scenarios", "offices.yaml"), "open_offices"))
}
