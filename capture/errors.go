package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed 句柄已关闭后再使用。
	ErrClosed = errors.New("capture: handle closed")

	// ErrConsumed Builder 已被 Activate 消费。
	ErrConsumed = errors.New("capture: builder already consumed")

	// ErrFilterClosed 过滤器已释放后再安装。
	ErrFilterClosed = errors.New("capture: filter already closed")

	// ErrPacketInvalidated borrowed 包在下一次轮询之后被引用。
	ErrPacketInvalidated = errors.New("capture: borrowed packet invalidated by a later poll")
)

// EngineError 引擎（外部协作者）报告的失败，记录失败的操作名与诊断信息。
type EngineError struct {
	Op  string // 失败的引擎操作，如 "activate"、"set_filter"
	Err error  // 引擎给出的诊断
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(op string, err error) error {
	return &EngineError{Op: op, Err: err}
}
