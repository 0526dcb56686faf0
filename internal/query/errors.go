package query

import "errors"

// ErrorCode 查询错误码
type ErrorCode string

const (
	// ErrCodeTimeout 超时内未收到响应
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeNetwork 套接字或传输层失败
	ErrCodeNetwork ErrorCode = "network"
)

// Error 查询领域错误
type Error struct {
	Code    ErrorCode
	Address string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf 提取查询错误码；若不是 query.Error 则返回空串
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTimeout 是否为超时错误
func IsTimeout(err error) bool {
	return CodeOf(err) == ErrCodeTimeout
}
