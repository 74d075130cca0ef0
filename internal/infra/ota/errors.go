package ota

import "errors"

var ErrBadResponse = errors.New("bad version response")
