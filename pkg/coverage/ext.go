package coverage

import (
	"net/url"
	"strings"
)

// Ext returns the lowercase file extension of url without the leading dot,
// or "" when there is none. It accepts any input, including relative paths
// and malformed URLs.
func Ext(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && u.Opaque == "" {
		return extOfPath(u.Path)
	}

	// Not an absolute URL: drop query and fragment, then take everything
	// after the last dot up to the next slash.
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return ""
	}
	ext := s[dot+1:]
	if slash := strings.IndexByte(ext, '/'); slash >= 0 {
		ext = ext[:slash]
	}
	return strings.ToLower(ext)
}

func extOfPath(p string) string {
	if slash := strings.LastIndexByte(p, '/'); slash >= 0 {
		p = p[slash+1:]
	}
	dot := strings.LastIndexByte(p, '.')
	if dot < 0 {
		return ""
	}
	return strings.ToLower(p[dot+1:])
}
