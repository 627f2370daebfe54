package registry

import "errors"

var (
	ErrRegistry                = errors.New("registry error")
	ErrAuth                    = errors.New("registry authentication failed")
	ErrNetwork                 = errors.New("registry request failed")
	ErrUnsupportedManifestType = errors.New("unsupported manifest type")
	ErrPlatformNotFound        = errors.New("no manifest for platform")
	ErrConfigDecode            = errors.New("image config decode failed")
	ErrBlobFetch               = errors.New("blob fetch failed")
)
