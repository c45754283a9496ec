package config

import "errors"

var (
	ErrNilConfig       = errors.New("config: nil target")
	ErrParse           = errors.New("config: parse environment")
	ErrLimitersFile    = errors.New("config: read limiters file")
	ErrInvalidLimiters = errors.New("config: invalid limiters")
)
