package repositories

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateName = errors.New("username already exists")
)
