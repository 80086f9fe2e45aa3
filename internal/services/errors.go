package services

import "errors"

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInquiryClosed      = errors.New("inquiry is closed")
	ErrAlreadyFavorited   = errors.New("property is already a favorite")
	ErrEmailTaken         = errors.New("email already in use by another account")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrNotLister          = errors.New("only listers can manage properties")
)
