package capture

import "github.com/norpex/livecap/engine"

// Builder 尚未激活的句柄，承载分阶段配置。
//
// 各 setter 可链式调用并采用粘性错误：第一个被引擎拒绝的选项会关闭句柄
// 并记录错误，后续调用全部成为空操作，错误最终由 Activate 返回。
// Activate 无论成败都会消费 Builder；失败后没有可用句柄，
// 调用方必须从 Open 重新开始。决定不激活时用 Close 释放句柄。
type Builder struct {
	h        *Handle
	err      error
	consumed bool
}

// Open 打开抓包源，返回待配置的 Builder。
func Open(op engine.Opener, source string) (*Builder, error) {
	eh, err := op.Open(source)
	if err != nil {
		return nil, engineErr("open", err)
	}
	return &Builder{h: newHandle(eh, source)}, nil
}

// BufferSize 设置激活后使用的缓冲区大小，单位字节。
func (b *Builder) BufferSize(n int) *Builder {
	return b.set(engine.OptBufferSize, n, "set_buffer_size")
}

// Promiscuous 设置是否开启混杂模式。
func (b *Builder) Promiscuous(on bool) *Builder {
	return b.set(engine.OptPromiscuous, boolValue(on), "set_promiscuous")
}

// Immediate 设置立即模式：包一到达就交付，不做缓冲。
func (b *Builder) Immediate(on bool) *Builder {
	return b.set(engine.OptImmediate, boolValue(on), "set_immediate_mode")
}

// SnapLen 设置截获长度。65535 字节对所有人都够用。
func (b *Builder) SnapLen(n int) *Builder {
	return b.set(engine.OptSnapLen, n, "set_snap_len")
}

// Err 返回目前记录的配置错误。
func (b *Builder) Err() error { return b.err }

func (b *Builder) set(opt engine.Option, value int, op string) *Builder {
	if b.consumed {
		if b.err == nil {
			b.err = ErrConsumed
		}
		return b
	}
	if b.err != nil {
		return b
	}
	if err := b.h.eng.SetOption(opt, value); err != nil {
		// 配置被拒绝意味着句柄不可再用，立即释放
		b.err = engineErr(op, err)
		b.h.Close()
	}
	return b
}

// Close 放弃尚未激活的 Builder 并释放句柄。
// 对已被 Activate 消费的 Builder 是空操作，重复调用无害。
func (b *Builder) Close() {
	if b.consumed {
		return
	}
	b.consumed = true
	b.h.Close()
}

// Activate 激活抓包，成功返回 Session。Builder 随之失效。
func (b *Builder) Activate() (*Session, error) {
	if b.consumed {
		return nil, ErrConsumed
	}
	b.consumed = true
	if b.err != nil {
		return nil, b.err
	}
	if err := b.h.eng.Activate(); err != nil {
		b.h.Close()
		return nil, engineErr("activate", err)
	}
	return &Session{h: b.h}, nil
}

func boolValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
