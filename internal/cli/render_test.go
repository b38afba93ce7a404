package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/compiler"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/testutil"
)

func TestRenderAll(t *testing.T) {
	out, err := run(t, NewRenderCommand(jsonOpts()), specsDir)
	require.NoError(t, err)

	var rendered []RenderedSpecification
	decode(t, out, &rendered)
	require.Len(t, rendered, 3)
	assert.Equal(t, "companyOfOffice", rendered[0].Name)
	assert.Equal(t, spec.Render(testutil.CompanyOfOfficeSpec()), rendered[0].Text)
	assert.Equal(t, spec.Render(testutil.OfficeNamesSpec()), rendered[1].Text)
	assert.Equal(t, spec.Render(testutil.OpenOfficesSpec()), rendered[2].Text)
	assert.Equal(t, spec.Identity(testutil.OpenOfficesSpec()), rendered[2].Identity)
	assert.Equal(t, filepath.Join(specsDir, "openOffices.spec"), rendered[2].File)
}

func TestRenderFeedText(t *testing.T) {
	out, err := run(t, NewRenderCommand(textOpts()), specsDir, "--spec", "openOffices", "--feed")
	require.NoError(t, err)

	want, err := os.ReadFile(filepath.Join("..", "spec", "testdata", "golden", "open_offices_feed.golden"))
	require.NoError(t, err)
	assert.Equal(t, "// openOffices\n"+string(want), out)
}

func TestRenderOutputParsesBack(t *testing.T) {
	out, err := run(t, NewRenderCommand(jsonOpts()), specsDir)
	require.NoError(t, err)

	var rendered []RenderedSpecification
	decode(t, out, &rendered)
	for _, r := range rendered {
		s, err := compiler.Parse(r.Text)
		require.NoError(t, err, r.Name)
		assert.Equal(t, r.Text, spec.Render(s), r.Name)
	}
}

func TestRenderUnknownSpec(t *testing.T) {
	out, err := run(t, NewRenderCommand(textOpts()), specsDir, "--spec", "closedOffices")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, "have companyOfOffice, officeNames, openOffices")
}

func TestInvertText(t *testing.T) {
	out, err := run(t, NewInvertCommand(textOpts()), specsDir, "--spec", "openOffices")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "invert_open_offices", []byte(out))
}

func TestInvertJSON(t *testing.T) {
	out, err := run(t, NewInvertCommand(jsonOpts()), specsDir, "--spec", "officeNames")
	require.NoError(t, err)

	var infos []InverseInfo
	decode(t, out, &infos)
	require.Len(t, infos, 2)

	assert.Equal(t, "office", infos[0].Target)
	assert.Equal(t, "Add", infos[0].Operation)
	assert.Equal(t, "", infos[0].Path)
	assert.Equal(t, []string{"company"}, infos[0].GivenSubset)

	assert.Equal(t, "name", infos[1].Target)
	assert.Equal(t, "Office.Name", infos[1].TargetType)
	assert.Equal(t, "Add", infos[1].Operation)
	assert.Equal(t, "names", infos[1].Path)
	assert.Equal(t, []string{"company", "office"}, infos[1].ParentSubset)

	for _, info := range infos {
		s, err := compiler.Parse(info.Specification)
		require.NoError(t, err)
		assert.NoError(t, s.Check(), "inverse specifications are valid specifications")
	}
}

func TestInvertRequiresSpec(t *testing.T) {
	_, err := run(t, NewInvertCommand(textOpts()), specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--spec is required")
}
