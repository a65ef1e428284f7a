package fs

import "errors"

var (
	ErrNameTooLong        = errors.New("file name too long")
	ErrInvalidName        = errors.New("invalid file name")
	ErrNotFound           = errors.New("file not found")
	ErrInsufficientSpace  = errors.New("not enough contiguous free clusters")
	ErrDirectoryFull      = errors.New("directory is full")
	ErrCorruptImage       = errors.New("corrupt volume image")
	ErrVolumeTooSmall     = errors.New("volume too small for its tables")
	ErrInvalidClusterSize = errors.New("invalid cluster size")
)
