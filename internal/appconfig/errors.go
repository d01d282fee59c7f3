package appconfig

import "errors"

var ErrInvalidConfig = errors.New("invalid config")
