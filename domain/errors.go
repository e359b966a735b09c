package domain

import "errors"

// ErrAccountExists indicates that the underlying storage rejected an account
// insert because the email already has a registered account.
var ErrAccountExists = errors.New("account already exists")
