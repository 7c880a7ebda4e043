package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neurify-goto/formsender-runner/internal/types"
)

// Resolver implements §4.7 ConfigResolver: a path that may contain exactly
// one "*" wildcard resolves to the single newest-by-mtime existing file
// matching the glob, or to the literal path if there is no wildcard.
type Resolver struct{}

// NewResolver creates a ConfigResolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the concrete file path the glob pattern selects.
func (r *Resolver) Resolve(pattern string) (string, error) {
	if strings.Count(pattern, "*") == 0 {
		fi, err := os.Stat(pattern)
		if err != nil {
			return "", &types.ConfigError{Kind: types.ConfigErrorReadFailed, Path: pattern, Err: err}
		}
		warnIfPermissive(pattern, fi.Mode())
		return pattern, nil
	}
	if strings.Count(pattern, "*") > 1 {
		return "", &types.ConfigError{
			Kind: types.ConfigErrorGlobAmbiguous,
			Path: pattern,
			Err:  fmt.Errorf("pattern must contain at most one '*' wildcard, got %q", pattern),
		}
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", &types.ConfigError{Kind: types.ConfigErrorReadFailed, Path: pattern, Err: err}
	}
	if len(matches) == 0 {
		return "", &types.ConfigError{
			Kind: types.ConfigErrorGlobNoMatch,
			Path: pattern,
			Err:  fmt.Errorf("no files matched %q", pattern),
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, erri := os.Stat(matches[i])
		fj, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})

	resolved := matches[0]
	if fi, err := os.Stat(resolved); err == nil {
		warnIfPermissive(resolved, fi.Mode())
	}
	return resolved, nil
}

// warnIfPermissive is the one place the resolver departs from spec.md's
// silence on file permissions (§9): a group/world readable campaign
// profile is logged, not rejected, since it carries sender PII.
func warnIfPermissive(path string, mode os.FileMode) {
	if mode.Perm()&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "warning: config file %s is readable beyond owner (mode %o)\n", path, mode.Perm())
	}
}

// Load resolves the pattern, reads the file, and runs Transform to produce
// a validated Profile. Invalid configs return a *types.ConfigError and
// must prevent worker start (§4.7, §7).
func Load(pattern string) (*Profile, error) {
	resolver := NewResolver()
	path, err := resolver.Resolve(pattern)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Kind: types.ConfigErrorReadFailed, Path: path, Err: err}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &types.ConfigError{Kind: types.ConfigErrorMalformed, Path: path, Err: err}
	}

	return Transform(doc, path)
}
