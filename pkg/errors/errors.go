package errors

import "errors"

// ErrTransport 云端读写失败：本地状态仍然权威有效，操作需由调用方重试
var ErrTransport = errors.New("云端传输失败")
