package messaging

import "errors"

var ErrClosed = errors.New("broker is closed")
