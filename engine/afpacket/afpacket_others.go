//go:build !linux

// Package afpacket 基于 AF_PACKET 原始套接字的 Linux 抓包引擎。
// 其他平台只提供返回 engine.ErrNotSupported 的占位实现。
package afpacket

import (
	"github.com/norpex/livecap/engine"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Open(source string) (engine.Handle, error) {
	return nil, engine.ErrNotSupported
}

func (e *Engine) ListDevices() (*engine.DeviceNode, error) {
	return nil, engine.ErrNotSupported
}

func (e *Engine) FreeDeviceList(head *engine.DeviceNode) {}
