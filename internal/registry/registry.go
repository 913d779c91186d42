// Package registry loads and validates the static whitelist mapping action
// identifiers to literal system commands. The registry is the single source
// of truth for what may ever be executed: nothing downstream runs an action
// identifier that is absent from it.
package registry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/auroralab/aurora/internal/model"
)

// forbiddenTokens are shell metacharacters that must never appear in a
// command line. Commands are executed without a shell, so none of these
// could ever be meaningful; rejecting them at load time is defense in
// depth against malformed or tampered registry files.
var forbiddenTokens = []string{";", "&", "|", "`", "$", ">", "<"}

// LoadError reports why a registry source failed validation. The whole
// load fails on the first bad line; partially-invalid registries are never
// partially trusted.
type LoadError struct {
	Line   int
	Reason string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("registry: line %d: %s", e.Line, e.Reason)
	}
	return "registry: " + e.Reason
}

// Registry is an immutable snapshot of the validated whitelist.
// Lookups are safe for concurrent use; the only supported update path is
// loading a fresh snapshot.
type Registry struct {
	specs map[model.ActionID]model.CommandSpec
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Reason: fmt.Sprintf("open %s: %v", path, err)}
	}
	defer f.Close()
	return Parse(f)
}

// Parse validates a line-oriented registry source. Each non-blank,
// non-comment line has the form:
//
//	IDENT = command arg arg ...
//	IDENT:high = command arg arg ...
//
// The identifier is uppercase/underscore only. The optional :low / :high
// suffix supplies a danger level; absent, it defaults to unknown. The right
// hand side is tokenized by whitespace, never shell-parsed, and any line
// containing a shell metacharacter fails the whole load.
func Parse(r io.Reader) (*Registry, error) {
	specs := make(map[model.ActionID]model.CommandSpec)

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &LoadError{Line: lineno, Reason: "missing '='"}
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		danger := model.DangerUnknown
		if ident, level, hasLevel := strings.Cut(key, ":"); hasLevel {
			parsed, err := model.ParseDangerLevel(strings.TrimSpace(level))
			if err != nil {
				return nil, &LoadError{Line: lineno, Reason: err.Error()}
			}
			key = strings.TrimSpace(ident)
			danger = parsed
		}

		id := model.ActionID(key)
		if !id.Valid() {
			return nil, &LoadError{Line: lineno, Reason: fmt.Sprintf("invalid action identifier %q: must be uppercase letters, digits, and underscores", key)}
		}

		if _, dup := specs[id]; dup {
			return nil, &LoadError{Line: lineno, Reason: fmt.Sprintf("duplicate action identifier %q", key)}
		}

		if value == "" {
			return nil, &LoadError{Line: lineno, Reason: fmt.Sprintf("empty command for %q", key)}
		}

		if tok := firstForbiddenToken(value); tok != "" {
			return nil, &LoadError{Line: lineno, Reason: fmt.Sprintf("forbidden shell metacharacter %q in command %q", tok, value)}
		}

		specs[id] = model.CommandSpec{
			ActionID: id,
			Argv:     strings.Fields(value),
			Danger:   danger,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{Reason: fmt.Sprintf("read: %v", err)}
	}

	if len(specs) == 0 {
		return nil, &LoadError{Reason: "no valid commands found"}
	}

	return &Registry{specs: specs}, nil
}

// firstForbiddenToken returns the first shell metacharacter found in the
// raw command text, or "" if the text is clean.
func firstForbiddenToken(value string) string {
	for _, tok := range forbiddenTokens {
		if strings.Contains(value, tok) {
			return tok
		}
	}
	return ""
}

// Lookup returns the command spec for an action identifier.
func (r *Registry) Lookup(id model.ActionID) (model.CommandSpec, bool) {
	spec, ok := r.specs[id]
	return spec, ok
}

// Contains reports whether the action identifier is whitelisted.
func (r *Registry) Contains(id model.ActionID) bool {
	_, ok := r.specs[id]
	return ok
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	return len(r.specs)
}

// ActionIDs returns all registered identifiers in sorted order.
func (r *Registry) ActionIDs() []model.ActionID {
	ids := make([]model.ActionID, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
