package recerr

import "errors"

var (
	ErrStoreUnavailable  = errors.New("row store unavailable")
	ErrAuthRefreshFailed = errors.New("auth token refresh failed")
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
)
