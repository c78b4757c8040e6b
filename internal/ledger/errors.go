package ledger

import "errors"

// ErrDuplicate indicates a publish record already exists for the topic.
var ErrDuplicate = errors.New("publish record already exists")
