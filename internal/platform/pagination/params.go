// Package pagination provides cursor-based page parameters shared by the
// list endpoints and the Firestore repositories that serve them.
package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when a request omits page_size.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps page_size when the caller supplies no own cap.
	DefaultMaxPageSize = 100
)

var (
	// ErrInvalidPageToken indicates a page token that cannot be decoded.
	ErrInvalidPageToken = errors.New("pagination: invalid page token")
	// ErrInvalidPageSize indicates a page_size value that is not an integer.
	ErrInvalidPageSize = errors.New("pagination: page_size must be an integer")
)

// Cursor marks a resume position within an ordered Firestore query. The field
// values mirror the query's order-by clause.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// Params carries the page window requested by the client. The token is opaque
// here; the repository that issued it decodes and validates it on use.
type Params struct {
	PageSize  int
	PageToken string
}

// Options bound the page window. Zero values fall back to the package defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) defaultSize() int {
	if o.DefaultPageSize > 0 {
		return o.DefaultPageSize
	}
	return DefaultPageSize
}

func (o Options) maxSize() int {
	if o.MaxPageSize > 0 {
		return o.MaxPageSize
	}
	return DefaultMaxPageSize
}

// FromRequest extracts page parameters from the request's query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{PageSize: opts.defaultSize()}, nil
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page_size and page_token from query values. Omitted and
// non-positive sizes take the default; oversized requests clamp to the max.
func Parse(values url.Values, opts Options) (Params, error) {
	params := Params{
		PageSize:  opts.defaultSize(),
		PageToken: strings.TrimSpace(values.Get("page_token")),
	}

	raw := strings.TrimSpace(values.Get("page_size"))
	if raw == "" {
		return params, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return Params{}, ErrInvalidPageSize
	}
	switch {
	case size <= 0:
	case size > opts.maxSize():
		params.PageSize = opts.maxSize()
	default:
		params.PageSize = size
	}
	return params, nil
}
