package capture

import (
	"sync"
	"sync/atomic"

	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/logx"
)

// Handle 独占一个引擎句柄。
//
// 引擎层的 Close 不保证幂等，Handle 保证底层资源恰好释放一次，
// 无论正常关闭、激活失败还是配置被拒绝。
type Handle struct {
	eng    engine.Handle
	source string

	closeOnce sync.Once
	closed    atomic.Bool
}

func newHandle(eng engine.Handle, source string) *Handle {
	return &Handle{eng: eng, source: source}
}

// Source 返回打开时指定的抓包源。
func (h *Handle) Source() string { return h.source }

// LastError 返回引擎最近一次错误的文本。
//
// 外层 error 表示连错误文本都无法取得；内层字符串才是引擎的诊断，
// 其内容本身可能描述上游的一个错误状态。
func (h *Handle) LastError() (string, error) {
	if h.closed.Load() {
		return "", ErrClosed
	}
	return h.eng.LastError()
}

// Close 释放底层句柄，可安全地多次调用，只有第一次生效。
// 未激活的句柄同样可以关闭。
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.eng.Close()
		logx.Debugf("capture: closed handle for %q", h.source)
	})
}
