package config

import (
	"fmt"

	"github.com/gobwas/glob"
)

// URLFilter holds compiled include and exclude globs. Globs have no path
// separators: '*' matches any run of characters including '/', '?' one
// character, and [...] and {a,b} work as usual.
type URLFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewURLFilter compiles include and exclude. An empty include list selects
// every URL.
func NewURLFilter(include, exclude []string) (*URLFilter, error) {
	var (
		f   URLFilter
		err error
	)
	if f.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}
	return &f, nil
}

// URLFilter compiles the include and exclude globs of c.
func (c Config) URLFilter() (*URLFilter, error) {
	return NewURLFilter(c.Include, c.Exclude)
}

// Selects reports whether a stylesheet URL passes the filter. Exclusion
// wins over inclusion.
func (f *URLFilter) Selects(url string) bool {
	if len(f.include) > 0 && !matchAny(f.include, url) {
		return false
	}
	return !matchAny(f.exclude, url)
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
