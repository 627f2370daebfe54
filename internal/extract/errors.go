package extract

import "errors"

var ErrExtraction = errors.New("layer extraction failed")
