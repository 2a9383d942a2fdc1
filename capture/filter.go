package capture

import "github.com/norpex/livecap/engine"

// Filter 持有一段编译好的过滤程序。
//
// 程序与编译它的句柄绑定，但生命周期独立：无论是否安装过，
// 每个 Filter 都必须 Close 恰好一次，且可以先于或晚于 Session 释放。
type Filter struct {
	prog   engine.Program
	expr   string
	closed bool
}

// Expr 返回编译时的过滤表达式。
func (f *Filter) Expr() string { return f.expr }

// Close 释放编译出的程序，重复调用只有第一次生效。
func (f *Filter) Close() {
	if f.closed {
		return
	}
	f.closed = true
	f.prog.Free()
}
