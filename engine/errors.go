package engine

import "errors"

var (
	// ErrTimeout 瞬时空轮询。上层迭代器应重试而不是上报。
	ErrTimeout = errors.New("engine: poll timed out")

	// ErrClosed 句柄已关闭。
	ErrClosed = errors.New("engine: handle closed")

	// ErrActivated 激活后再设置选项。
	ErrActivated = errors.New("engine: handle already activated")

	// ErrNotActivated 未激活就执行抓包类操作。
	ErrNotActivated = errors.New("engine: handle not activated")

	// ErrNotSupported 当前平台或引擎不支持请求的操作。
	ErrNotSupported = errors.New("engine: not supported on this platform")
)
