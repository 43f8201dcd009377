package extractor

import (
	crerr "github.com/cockroachdb/errors"
)

// Error kinds. Errors returned by Run carry exactly one of these marks.
var (
	ErrConfiguration = crerr.New("configuration error")
	ErrRemoteFetch   = crerr.New("remote fetch error")
	ErrStoreRead     = crerr.New("store read error")
	ErrStoreWrite    = crerr.New("store write error")
)

// Kind returns a short label for the error's mark, used in run reports and metrics
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case crerr.Is(err, ErrConfiguration):
		return "configuration"
	case crerr.Is(err, ErrRemoteFetch):
		return "remote_fetch"
	case crerr.Is(err, ErrStoreRead):
		return "store_read"
	case crerr.Is(err, ErrStoreWrite):
		return "store_write"
	default:
		return "internal"
	}
}

func markf(err error, mark error, format string, args ...any) error {
	return crerr.Mark(crerr.Wrapf(err, format, args...), mark)
}
