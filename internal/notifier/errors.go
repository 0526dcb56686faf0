package notifier

import "errors"

// ErrorCode 发送错误码
type ErrorCode string

const (
	// ErrCodeStatus webhook 返回非 200/204
	ErrCodeStatus ErrorCode = "status"
	// ErrCodeTransport 网络失败或超时
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeEncode 请求体序列化失败
	ErrCodeEncode ErrorCode = "encode"
)

// Error 告警发送错误
type Error struct {
	Code       ErrorCode
	StatusCode int // 仅 ErrCodeStatus 时有效
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf 提取发送错误码；若不是 notifier.Error 则返回空串
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
