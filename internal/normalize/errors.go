package normalize

import "errors"

// ErrParse is returned for any value normalization cannot parse, surfaced by
// the run processor as the PARSE_ERROR code.
var ErrParse = errors.New("normalize: parse error")
