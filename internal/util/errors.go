package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")

	ErrExamNotFound     = errors.New("exam not found")
	ErrNotEligible      = errors.New("not eligible for this exam")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrDeadlineExpired  = errors.New("exam time has expired")
	ErrInvalidScore     = errors.New("score out of range")
	ErrStorageConflict  = errors.New("attempt modified concurrently")
	ErrResultNotFound   = errors.New("result not found")
)
