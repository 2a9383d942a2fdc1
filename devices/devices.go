// Package devices 把引擎返回的原生设备链表转换为自包含的接口集合。
//
// 枚举与任何打开的抓包句柄无关：每次 List 调用向引擎查询一次完整链表，
// 所有字段在遍历时即被复制，转换结果不再引用原生链表的内存。
package devices

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/logx"
)

// DeviceList 持有一条原生设备链表的所有权。
//
// 原生链表只在首次遍历时被走一遍，转换结果与跳过计数随即缓存；
// 之后的 Interfaces/FindBy* 都从缓存读取，不再触碰原生内存。
// 无论转换了多少节点、跳过了多少地址，整条链表都恰好释放一次（Close）。
type DeviceList struct {
	lister engine.DeviceLister
	head   *engine.DeviceNode

	convertOnce sync.Once
	ifaces      []Interface
	skipped     int

	closeOnce sync.Once
}

// List 向引擎查询设备链表。返回的 DeviceList 必须由调用方 Close。
func List(l engine.DeviceLister) (*DeviceList, error) {
	head, err := l.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("devices: list devices: %w", err)
	}
	return &DeviceList{lister: l, head: head}, nil
}

// materialize 走一遍原生链表并缓存转换结果，恰好执行一次。
// Close 之后才首次调用时链表已被释放，缓存为空。
func (dl *DeviceList) materialize() {
	dl.convertOnce.Do(func() {
		for node := dl.head; node != nil; node = node.Next {
			ifc, ok := dl.convert(node)
			if !ok {
				logx.Errorf("devices: skipping unnamed device node")
				continue
			}
			dl.ifaces = append(dl.ifaces, ifc)
		}
	})
}

// Iter 返回接口迭代器，只前向走一遍。
func (dl *DeviceList) Iter() *Iter {
	return &Iter{dl: dl}
}

// Interfaces 返回全部接口。
func (dl *DeviceList) Interfaces() []Interface {
	dl.materialize()
	out := make([]Interface, len(dl.ifaces))
	copy(out, dl.ifaces)
	return out
}

// FindByName 返回第一个名字等于 name 的接口。
func (dl *DeviceList) FindByName(name string) (Interface, bool) {
	for _, ifc := range dl.Interfaces() {
		if ifc.HasName(name) {
			logx.Debugf("devices: FindByName(%s) = %v", name, ifc)
			return ifc, true
		}
	}
	return Interface{}, false
}

// FindByIP 返回第一个配置了地址 ip 的接口。
func (dl *DeviceList) FindByIP(ip netip.Addr) (Interface, bool) {
	for _, ifc := range dl.Interfaces() {
		if ifc.HasAddress(ip) {
			logx.Debugf("devices: FindByIP(%s) = %v", ip, ifc)
			return ifc, true
		}
	}
	return Interface{}, false
}

// Skipped 返回枚举过程中因地址种类无法识别而跳过的地址条数。
// 枚举只发生一次，重复查询不会重复计数。
func (dl *DeviceList) Skipped() int {
	dl.materialize()
	return dl.skipped
}

// Close 释放原生链表，恰好一次。已缓存的转换结果不受影响；
// 尚未遍历过就 Close 的列表之后产出为空。
func (dl *DeviceList) Close() {
	dl.closeOnce.Do(func() {
		head := dl.head
		dl.head = nil
		dl.lister.FreeDeviceList(head)
		logx.Debugf("devices: freed device list")
	})
}

// Iter 设备迭代器，只前向推进。
type Iter struct {
	dl  *DeviceList
	pos int
}

// Next 产出下一个接口。
func (it *Iter) Next() (Interface, bool) {
	it.dl.materialize()
	if it.pos >= len(it.dl.ifaces) {
		return Interface{}, false
	}
	ifc := it.dl.ifaces[it.pos]
	it.pos++
	return ifc, true
}
