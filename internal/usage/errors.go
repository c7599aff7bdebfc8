package usage

import "errors"

// ErrLimitReached indicates the user exceeded their free-analysis limit.
var ErrLimitReached = errors.New("usage: limit reached")
