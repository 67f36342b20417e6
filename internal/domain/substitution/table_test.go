package substitution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/rpm-stager/internal/failure"
)

func testInputs() Inputs {
	return Inputs{
		Name:              "wsgo",
		Version:           "1.2.3",
		RPMVersion:        "4",
		SystemExec:        "pa-wsgo",
		AppVersion:        "QAPP_VERSIONQ",
		SoftwareVersion:   "7.0.1",
		SystemdCommonJSON: "/etc/pacbio/pa-common.json",
		SystemdAlias:      "pacbio-pa-wsgo",
	}
}

// TestResolve_VersionAndRelease covers the @V@-@RV@ scenario.
func TestResolve_VersionAndRelease(t *testing.T) {
	t.Parallel()

	table, err := Build(testInputs())
	require.NoError(t, err)

	require.Equal(t, "1.2.3-4", table.Resolve("@V@-@RV@"))
	require.Equal(t,
		"./opt/pacbio/pa-wsgo-1.2.3/systemd/pacbio-pa-wsgo-1.2.3.service",
		table.Resolve("./opt/pacbio/pa-@NAME@-@V@/systemd/pacbio-pa-@NAME@-@V@.service"))
}

// TestResolve_NoKnownTokenSurvives checks that every known token disappears after substitution.
func TestResolve_NoKnownTokenSurvives(t *testing.T) {
	t.Parallel()

	table, err := Build(testInputs())
	require.NoError(t, err)

	var content string
	for _, tok := range table.Tokens() {
		content += "x" + string(tok) + string(tok) + "\n"
	}

	out := table.Resolve(content)
	for _, tok := range table.Tokens() {
		require.NotContains(t, out, string(tok))
	}

	require.Empty(t, Unresolved(out))
	require.Equal(t, out, table.Resolve(content), "resolution must be deterministic")
}

// TestResolve_UnknownTokensAreKept leaves foreign placeholders untouched and reports them.
func TestResolve_UnknownTokensAreKept(t *testing.T) {
	t.Parallel()

	table, err := Build(testInputs())
	require.NoError(t, err)

	out := table.Resolve("ExecStart=@SYSTEM_EXEC@ @PORT@ @PORT@ @HOST@")
	require.Equal(t, "ExecStart=pa-wsgo @PORT@ @PORT@ @HOST@", out)
	require.Equal(t, []string{"@PORT@", "@HOST@"}, Unresolved(out))
}

// TestBuild_RequiredValues rejects empty required inputs.
func TestBuild_RequiredValues(t *testing.T) {
	t.Parallel()

	for _, mutate := range []func(*Inputs){
		func(in *Inputs) { in.Name = "" },
		func(in *Inputs) { in.Version = " " },
		func(in *Inputs) { in.RPMVersion = "" },
		func(in *Inputs) { in.SoftwareVersion = "" },
	} {
		in := testInputs()
		mutate(&in)

		_, err := Build(in)
		require.ErrorIs(t, err, failure.ErrInvalidConfig)
	}
}

// TestBuild_ExtraTokens accepts new tokens and refuses redefinitions.
func TestBuild_ExtraTokens(t *testing.T) {
	t.Parallel()

	in := testInputs()
	in.Extra = map[string]string{"@PORT@": "23632"}

	table, err := Build(in)
	require.NoError(t, err)

	value, ok := table.Lookup("@PORT@")
	require.True(t, ok)
	require.Equal(t, "23632", value)
	require.Equal(t, "--port 23632", table.Resolve("--port @PORT@"))

	in.Extra = map[string]string{"@V@": "9"}
	_, err = Build(in)
	require.ErrorIs(t, err, failure.ErrInvalidConfig)
}

// TestNew_RejectsAmbiguousTables covers malformed, nested and self-referencing tokens.
func TestNew_RejectsAmbiguousTables(t *testing.T) {
	t.Parallel()

	cases := map[string]map[Token]string{
		"malformed":        {"NAME": "x"},
		"lowercase":        {"@name@": "x"},
		"nested tokens":    {"@A@": "1", "@X@A@": "2"},
		"value with token": {"@A@": "@B@", "@B@": "2"},
		"value with self":  {"@A@": "pre-@A@"},
	}
	for name, values := range cases {
		_, err := New(values)
		require.ErrorIs(t, err, failure.ErrInvalidConfig, name)
	}
}

// TestTable_String lists pairs sorted by token.
func TestTable_String(t *testing.T) {
	t.Parallel()

	table, err := New(map[Token]string{"@V@": "1", "@NAME@": "wsgo"})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, "@NAME@=wsgo\n@V@=1\n", table.String())
}
