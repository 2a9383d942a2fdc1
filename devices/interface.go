package devices

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/norpex/livecap/addr"
)

// Flags 接口状态标志集合，按位去重。
type Flags uint32

const (
	FlagLoopback Flags = 1 << iota
	FlagUp
	FlagRunning
)

// Has 报告 f 是否包含 x 的全部标志。
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagLoopback) {
		parts = append(parts, "loopback")
	}
	if f.Has(FlagUp) {
		parts = append(parts, "up")
	}
	if f.Has(FlagRunning) {
		parts = append(parts, "running")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// InterfaceAddress 接口上的一条地址记录。
// 除主地址外，掩码、广播与点对点对端地址都可能缺失。
type InterfaceAddress struct {
	Addr        addr.Address
	Netmask     *addr.Address
	Broadcast   *addr.Address
	Destination *addr.Address
}

// Equal 逐字段比较，用于去重。
func (ia InterfaceAddress) Equal(o InterfaceAddress) bool {
	return ia.Addr.Equal(o.Addr) &&
		optEqual(ia.Netmask, o.Netmask) &&
		optEqual(ia.Broadcast, o.Broadcast) &&
		optEqual(ia.Destination, o.Destination)
}

func optEqual(a, b *addr.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Interface 一个可枚举的抓包设备。构造后即自包含，不再依赖引擎内存。
type Interface struct {
	// Name 设备名，可直接传给 capture.Open。
	Name string
	// Description 设备描述，可能为空。
	Description string
	// Addresses 设备上的地址，保持引擎交付顺序并已去重。
	Addresses []InterfaceAddress
	// Flags 设备状态标志。
	Flags Flags
}

// IsUp 接口处于 up 状态。
func (i Interface) IsUp() bool { return i.Flags.Has(FlagUp) }

// IsRunning 接口处于 running 状态。
func (i Interface) IsRunning() bool { return i.Flags.Has(FlagRunning) }

// IsLoopback 接口是回环设备。
func (i Interface) IsLoopback() bool { return i.Flags.Has(FlagLoopback) }

// HasName 接口名等于 name。
func (i Interface) HasName(name string) bool { return i.Name == name }

// HardwareAddr 返回接口的第一个硬件（MAC）地址。
func (i Interface) HardwareAddr() (addr.MAC, bool) {
	for _, ia := range i.Addresses {
		if m, ok := ia.Addr.AsHardware(); ok {
			return m, true
		}
	}
	return addr.MAC{}, false
}

// IPAddresses 返回接口的全部 IP 地址。
func (i Interface) IPAddresses() []netip.Addr {
	var out []netip.Addr
	for _, ia := range i.Addresses {
		if ip, ok := ia.Addr.AsIP(); ok {
			out = append(out, ip)
		}
	}
	return out
}

// HasAddress 接口配置了地址 ip。
func (i Interface) HasAddress(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, got := range i.IPAddresses() {
		if got == ip {
			return true
		}
	}
	return false
}

func (i Interface) String() string {
	return fmt.Sprintf("%s [%s] addrs=%d", i.Name, i.Flags, len(i.Addresses))
}
