package audit

import "errors"

var ErrInvalidRetention = errors.New("retention must be a positive number of days")
