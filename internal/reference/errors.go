package reference

import "errors"

var ErrReferenceFormat = errors.New("invalid image reference")
