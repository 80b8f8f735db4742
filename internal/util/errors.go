package util

import "errors"

var (
	ErrCourseNotFound      = errors.New("interactive course not found")
	ErrVideoNotFound       = errors.New("video not found")
	ErrProgressNotFound    = errors.New("progress record not found")
	ErrStaleRecord         = errors.New("progress record modified concurrently")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrQuizBeforeContent   = errors.New("quiz result not accepted before content completion")
	ErrSaveRetriesExceeded = errors.New("progress save failed after retries")
)
