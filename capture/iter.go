package capture

import (
	"errors"
	"io"

	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/logx"
)

// Iterator 从会话中逐个取包，用法与 bufio.Scanner 相同：
//
//	it := session.Capture()
//	for it.Next() {
//	    handle(it.Packet())
//	}
//	if err := it.Err(); err != nil { ... }
//
// 每次 Next 恰好向引擎轮询一次，不做内部缓冲，包按引擎交付顺序产出。
// 上一步产出的 borrowed 包在调用 Next 的瞬间失效。
type Iterator struct {
	s    *Session
	cur  *Packet
	err  error
	done bool
}

// Next 推进到下一个包。序列结束（流耗尽或出错）时返回 false，
// 之后由 Err 区分两种结束方式。
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.s.h.closed.Load() {
		// 会话已关闭，不再触碰引擎句柄
		it.done = true
		it.err = ErrClosed
		return false
	}
	it.cur = nil
	for {
		// 引擎即将复用缓冲区，先让上一个 borrowed 包失效
		it.s.gen++
		c, err := it.s.h.eng.Next()
		if err != nil {
			if errors.Is(err, engine.ErrTimeout) {
				// 即便设置了立即模式，引擎仍可能报告瞬时超时，
				// 直接重试，不向消费者暴露
				continue
			}
			it.done = true
			if errors.Is(err, io.EOF) {
				return false
			}
			it.err = engineErr("next", err)
			logx.Debugf("capture: iterator for %q terminated: %v", it.s.Source(), err)
			return false
		}
		it.cur = &Packet{
			data: c.Data,
			ts:   c.Timestamp,
			s:    it.s,
			gen:  it.s.gen,
		}
		return true
	}
}

// Packet 返回最近一次 Next 产出的包。
// 返回的是 borrowed 包，下一次 Next 之后不可再读。
func (it *Iterator) Packet() *Packet { return it.cur }

// Err 返回终止迭代的错误；流干净结束时返回 nil。
func (it *Iterator) Err() error { return it.err }
