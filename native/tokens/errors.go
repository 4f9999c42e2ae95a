package tokens

import "errors"

var (
	ErrInsufficientBalance   = errors.New("tokens: insufficient balance")
	ErrInsufficientAllowance = errors.New("tokens: insufficient allowance")
	ErrNotOwner              = errors.New("tokens: caller is not the owner")
	ErrNotApproved           = errors.New("tokens: operator not approved")
	ErrAlreadyMinted         = errors.New("tokens: token already minted")
	ErrNonexistentToken      = errors.New("tokens: token does not exist")
	ErrZeroAddress           = errors.New("tokens: zero address")
	ErrInvalidAmount         = errors.New("tokens: amount must be positive and fit in 256 bits")
)
