package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	db, refs := loadDirectory(t)
	assert.Len(t, refs, 5)
	assert.True(t, strings.HasPrefix(refs["acme"], "Company:"))
	assert.True(t, strings.HasPrefix(refs["nyc_closed"], "Office.Closed:"))

	// Loading again saves nothing new.
	out, err := run(t, NewLoadCommand(textOpts()), "--db", db, directoryFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 5 fact(s) saved, 0 new")
	assert.Contains(t, out, "acme\t"+refs["acme"])
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	out, err := run(t, NewLoadCommand(textOpts()), directoryFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E008]")
	assert.Contains(t, out, EnvDatabase)
}

func TestLoadBadFactFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "facts:\n  - id: a\n    type: A\n    colour: red\n", "colour"},
		{"no facts", "facts: []\n", "no facts"},
		{"missing type", "facts:\n  - id: a\n", "id and type are required"},
		{"duplicate id", "facts:\n  - {id: a, type: A}\n  - {id: a, type: A}\n", `duplicate id "a"`},
		{"unknown predecessor", "facts:\n  - id: b\n    type: B\n    predecessors: {parent: [a]}\n", `unknown fact "a"`},
		{"float field", "facts:\n  - id: a\n    type: A\n    fields: {ratio: 0.5}\n", "fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "facts.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			out, err := run(t, NewLoadCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "x.db"), path)
			require.Error(t, err)
			assert.Contains(t, out, "Error [E010]")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestLoadMissingPredecessorInDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	content := "facts:\n  - id: b\n    type: Office\n    predecessors: {company: [\"Company:abc123\"]}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := run(t, NewLoadCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "x.db"), path)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E008]")
	assert.Contains(t, out, "failed to save facts")
}

func TestQueryStrategiesAgree(t *testing.T) {
	db, refs := loadDirectory(t)

	tests := []struct {
		spec  string
		given string
		want  string
	}{
		{"openOffices", "company=" + refs["acme"], `["sfo"]`},
		{"officeNames", "company=" + refs["acme"], `[{"identifier":"nyc","names":["New York"]},{"identifier":"sfo","names":[]}]`},
		{"companyOfOffice", "office=" + refs["sfo"], `["acme"]`},
	}
	for _, tt := range tests {
		for _, strategy := range []string{StrategyGraph, StrategySQL} {
			t.Run(tt.spec+"/"+strategy, func(t *testing.T) {
				out, err := run(t, NewQueryCommand(jsonOpts()),
					"--db", db, specsDir, "--spec", tt.spec, "--given", tt.given, "--strategy", strategy)
				require.NoError(t, err, out)

				var result QueryResult
				decode(t, out, &result)
				assert.Equal(t, tt.spec, result.Specification)
				assert.Equal(t, strategy, result.Strategy)
				assert.JSONEq(t, tt.want, string(result.Results))
			})
		}
	}
}

func TestQueryText(t *testing.T) {
	db, refs := loadDirectory(t)
	out, err := run(t, NewQueryCommand(textOpts()),
		"--db", db, specsDir, "--spec", "officeNames", "--given", "company="+refs["acme"])
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"identifier":"nyc","names":["New York"]}`, lines[0])
	assert.JSONEq(t, `{"identifier":"sfo","names":[]}`, lines[1])
}

func TestQueryErrors(t *testing.T) {
	db, refs := loadDirectory(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"bad strategy", []string{"--spec", "openOffices", "--given", "company=" + refs["acme"], "--strategy", "magic"}, ErrCodeGeneric},
		{"unknown spec", []string{"--spec", "nope", "--given", "company=" + refs["acme"]}, ErrCodeUnknownSpec},
		{"unbound given", []string{"--spec", "openOffices"}, ErrCodeBadGiven},
		{"malformed given", []string{"--spec", "openOffices", "--given", "company"}, ErrCodeBadGiven},
		{"wrong given type", []string{"--spec", "openOffices", "--given", "company=" + refs["nyc"]}, ErrCodeBadGiven},
		{"extra given", []string{"--spec", "openOffices", "--given", "company=" + refs["acme"], "--given", "user=User:1"}, ErrCodeBadGiven},
		{"given not stored", []string{"--spec", "openOffices", "--given", "company=Company:0000"}, ErrCodeExecute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, specsDir}, tt.args...)
			out, err := run(t, NewQueryCommand(jsonOpts()), args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decode(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code, resp.Error.Message)
		})
	}
}

func TestWatch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "facts.db")
	out, err := run(t, NewWatchCommand(jsonOpts()),
		"--db", db, specsDir, directoryFile, "--spec", "openOffices", "--given", "company=acme")
	require.NoError(t, err, out)

	var result WatchResult
	decode(t, out, &result)
	assert.Equal(t, "openOffices", result.Specification)
	assert.NotEmpty(t, result.Observer)
	assert.Equal(t, 1, result.Initial)
	assert.Equal(t, 3, result.Arrivals)
	assert.JSONEq(t, `["sfo"]`, string(result.Results))

	trace := make([]string, len(result.Changes))
	for i, c := range result.Changes {
		trace[i] = c.String()
	}
	assert.Equal(t, []string{
		`sfo: + "" {company=acme, office=sfo}`,
		`nyc_closed: - "" {company=acme, office=nyc}`,
	}, trace)
}

func TestWatchNestedText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "facts.db")
	out, err := run(t, NewWatchCommand(textOpts()),
		"--db", db, specsDir, directoryFile, "--spec", "officeNames", "--given", "company=acme")
	require.NoError(t, err, out)

	assert.Equal(t, strings.Join([]string{
		"observing officeNames: 1 result(s)",
		`sfo: + "" {company=acme, office=sfo}`,
		`nyc_name: + "names" {company=acme, name=nyc_name, office=nyc}`,
		"3 arrival(s), 2 change(s)",
		`results: [{"identifier":"nyc","names":["New York"]},{"identifier":"sfo","names":[]}]`,
		"",
	}, "\n"), out)
}

func TestWatchMatchesQuery(t *testing.T) {
	// The observer's final results equal a fresh query over the same
	// database.
	db := filepath.Join(t.TempDir(), "facts.db")
	out, err := run(t, NewWatchCommand(jsonOpts()),
		"--db", db, specsDir, directoryFile, "--spec", "officeNames", "--given", "company=acme")
	require.NoError(t, err, out)
	var watched WatchResult
	decode(t, out, &watched)

	_, refs := loadDirectory(t)
	out, err = run(t, NewQueryCommand(jsonOpts()),
		"--db", db, specsDir, "--spec", "officeNames", "--given", "company="+refs["acme"])
	require.NoError(t, err, out)
	var queried QueryResult
	decode(t, out, &queried)

	assert.JSONEq(t, string(queried.Results), string(watched.Results))
}

func TestWatchGivenMustBeSeeded(t *testing.T) {
	db := filepath.Join(t.TempDir(), "facts.db")
	out, err := run(t, NewWatchCommand(jsonOpts()),
		"--db", db, specsDir, directoryFile, "--spec", "companyOfOffice", "--given", "office=sfo")
	require.Error(t, err)
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeExecute, resp.Error.Code)
}

func TestExportImport(t *testing.T) {
	db, refs := loadDirectory(t)
	snapshot := filepath.Join(t.TempDir(), "facts.snapshot.zst")

	out, err := run(t, NewExportCommand(jsonOpts()), "--db", db, snapshot)
	require.NoError(t, err, out)
	var exported SnapshotSummary
	decode(t, out, &exported)
	assert.Equal(t, 5, exported.Facts)

	replica := filepath.Join(t.TempDir(), "replica.db")
	out, err = run(t, NewImportCommand(textOpts()), "--db", replica, snapshot)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ imported 5 fact(s)")

	out, err = run(t, NewQueryCommand(jsonOpts()),
		"--db", replica, specsDir, "--spec", "openOffices", "--given", "company="+refs["acme"])
	require.NoError(t, err, out)
	var result QueryResult
	decode(t, out, &result)
	assert.JSONEq(t, `["sfo"]`, string(result.Results))

	// Importing into a database that already has the facts adds none.
	out, err = run(t, NewImportCommand(jsonOpts()), "--db", replica, snapshot)
	require.NoError(t, err, out)
	var again SnapshotSummary
	decode(t, out, &again)
	assert.Equal(t, 0, again.Facts)
}

func TestImportErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "facts.db")

	_, err := run(t, NewImportCommand(textOpts()), "--db", db, filepath.Join(t.TempDir(), "missing.zst"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)

	garbage := filepath.Join(t.TempDir(), "garbage.zst")
	require.NoError(t, os.WriteFile(garbage, []byte("not zstd"), 0o644))
	out, err := run(t, NewImportCommand(jsonOpts()), "--db", db, garbage)
	require.Error(t, err)
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeDatabase, resp.Error.Code)
}

func TestExportUnwritable(t *testing.T) {
	db, _ := loadDirectory(t)
	out, err := run(t, NewExportCommand(textOpts()), "--db", db, filepath.Join(t.TempDir(), "no", "such", "dir", "x.zst"))
	require.Error(t, err)
	assert.Contains(t, out, "Error [E007]")
}

func TestQueryResultJSONShape(t *testing.T) {
	data, err := json.Marshal(QueryResult{Specification: "s", Strategy: StrategySQL, Count: 1, Results: json.RawMessage(`["x"]`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"specification":"s","strategy":"sql","count":1,"results":["x"]}`, string(data))
}
