package substitution

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/oshokin/rpm-stager/internal/failure"
)

// Token is a placeholder in @NAME@ form.
type Token string

// Well-known tokens.
const (
	TokenName                Token = "@NAME@"
	TokenVersion             Token = "@V@"
	TokenRPMVersion          Token = "@RV@"
	TokenSystemExec          Token = "@SYSTEM_EXEC@"
	TokenAppVersion          Token = "@APP_VERSION@"
	TokenSoftwareVersion     Token = "@SOFTWARE_VERSION@"
	TokenSystemdDependencies Token = "@SYSTEMD_DEPENDENCIES@"
	TokenSystemdConfPath     Token = "@SYSTEMD_CONF_PATH@"
	TokenSystemdPreExec      Token = "@SYSTEMD_PREEXEC1@"
	TokenSystemdCommonJSON   Token = "@SYSTEMD_COMMON_JSON@"
	TokenSystemdAlias        Token = "@SYSTEMD_ALIAS@"
)

var (
	// tokenPattern finds placeholders inside arbitrary text.
	tokenPattern = regexp.MustCompile(`@[A-Z0-9_]+@`)
	// wellFormedToken validates a whole token.
	wellFormedToken = regexp.MustCompile(`^@[A-Z0-9_]+@$`)
)

// Inputs are the values a Table is built from.
type Inputs struct {
	Name                string
	Version             string
	RPMVersion          string
	SystemExec          string
	AppVersion          string
	SoftwareVersion     string
	SystemdDependencies string
	SystemdConfPath     string
	SystemdPreExec      string
	SystemdCommonJSON   string
	SystemdAlias        string
	// Extra holds additional tokens declared in configuration.
	Extra map[string]string
}

// Table maps tokens to their replacement values.
type Table struct {
	values   map[Token]string
	tokens   []Token
	replacer *strings.Replacer
}

// Build creates a Table from inputs. Name, versions and the software version are required.
func Build(in Inputs) (*Table, error) {
	required := map[Token]string{
		TokenName:            in.Name,
		TokenVersion:         in.Version,
		TokenRPMVersion:      in.RPMVersion,
		TokenSoftwareVersion: in.SoftwareVersion,
	}
	for _, tok := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[tok]) == "" {
			return nil, failure.InvalidConfig("no value for %s", tok)
		}
	}

	values := map[Token]string{
		TokenName:                in.Name,
		TokenVersion:             in.Version,
		TokenRPMVersion:          in.RPMVersion,
		TokenSystemExec:          in.SystemExec,
		TokenAppVersion:          in.AppVersion,
		TokenSoftwareVersion:     in.SoftwareVersion,
		TokenSystemdDependencies: in.SystemdDependencies,
		TokenSystemdConfPath:     in.SystemdConfPath,
		TokenSystemdPreExec:      in.SystemdPreExec,
		TokenSystemdCommonJSON:   in.SystemdCommonJSON,
		TokenSystemdAlias:        in.SystemdAlias,
	}

	for name, value := range in.Extra {
		tok := Token(name)
		if _, ok := values[tok]; ok {
			return nil, failure.InvalidConfig("extra token %s redefines a built-in token", tok)
		}

		values[tok] = value
	}

	return New(values)
}

// New creates a Table from raw token values after checking that
// single-pass replacement is unambiguous.
func New(values map[Token]string) (*Table, error) {
	tokens := slices.Collect(maps.Keys(values))

	// Longest first so the replacer prefers the longer of two tokens
	// starting at the same position; ties break alphabetically.
	slices.SortFunc(tokens, func(a, b Token) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}

		return strings.Compare(string(a), string(b))
	})

	for _, tok := range tokens {
		if !wellFormedToken.MatchString(string(tok)) {
			return nil, failure.InvalidConfig("token %q is not of the form @NAME@", tok)
		}
	}

	for i, a := range tokens {
		for _, b := range tokens[i+1:] {
			if strings.Contains(string(a), string(b)) {
				return nil, failure.InvalidConfig("token %s contains token %s", a, b)
			}
		}

		for _, b := range tokens {
			if strings.Contains(values[b], string(a)) {
				return nil, failure.InvalidConfig("value of %s contains token %s", b, a)
			}
		}
	}

	pairs := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		pairs = append(pairs, string(tok), values[tok])
	}

	return &Table{
		values:   maps.Clone(values),
		tokens:   tokens,
		replacer: strings.NewReplacer(pairs...),
	}, nil
}

// Resolve replaces every token occurrence in s in a single pass.
func (t *Table) Resolve(s string) string {
	return t.replacer.Replace(s)
}

// Lookup returns the value of tok.
func (t *Table) Lookup(tok Token) (string, bool) {
	v, ok := t.values[tok]

	return v, ok
}

// Tokens returns the tokens of the table in replacement order.
func (t *Table) Tokens() []Token {
	return slices.Clone(t.tokens)
}

// Len returns the number of tokens.
func (t *Table) Len() int {
	return len(t.tokens)
}

// String renders the table one "token=value" pair per line, sorted by token.
func (t *Table) String() string {
	sorted := slices.Sorted(maps.Keys(t.values))

	var b strings.Builder
	for _, tok := range sorted {
		fmt.Fprintf(&b, "%s=%s\n", tok, t.values[tok])
	}

	return b.String()
}

// Unresolved returns the distinct placeholders left in s, in order of appearance.
func Unresolved(s string) []string {
	var found []string

	for _, m := range tokenPattern.FindAllString(s, -1) {
		if !slices.Contains(found, m) {
			found = append(found, m)
		}
	}

	return found
}
