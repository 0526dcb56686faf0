package config

import "errors"

// ErrorCode 配置错误码
type ErrorCode string

const (
	// ErrCodeNotFound 配置文件不存在
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeRead 配置文件无法读取
	ErrCodeRead ErrorCode = "read"
	// ErrCodeParse 配置文件格式错误
	ErrCodeParse ErrorCode = "parse"
	// ErrCodeInvalid 配置内容不合法
	ErrCodeInvalid ErrorCode = "invalid"
)

// Error 配置领域错误（稳定 Code；Err 用于内部诊断）
type Error struct {
	Code    ErrorCode
	Path    string
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

// CodeOf 提取配置错误码；若不是 config.Error 则返回空串
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
