// Package addr 提供统一的地址类型：一个值要么是 IPv4、要么是 IPv6、
// 要么是硬件（MAC）地址，可按种类判别与提取。
package addr

import (
	"errors"
	"net"
	"net/netip"
)

// ErrInvalidAddress 在错误的种类上做提取时返回。
var ErrInvalidAddress = errors.New("addr: invalid address kind")

// Kind 地址种类。
type Kind int

const (
	KindInvalid Kind = iota
	KindIPv4
	KindIPv6
	KindHardware
)

func (k Kind) String() string {
	switch k {
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindHardware:
		return "hardware"
	default:
		return "invalid"
	}
}

// Address 带标签的地址联合。零值无效。
type Address struct {
	kind Kind
	ip   netip.Addr
	hw   MAC
}

// FromIP 由 netip.Addr 构造。4-in-6 映射地址按 IPv4 归类。
func FromIP(ip netip.Addr) (Address, bool) {
	if !ip.IsValid() {
		return Address{}, false
	}
	ip = ip.Unmap()
	k := KindIPv6
	if ip.Is4() {
		k = KindIPv4
	}
	return Address{kind: k, ip: ip}, true
}

// FromNetIP 由 net.IP 构造。
func FromNetIP(ip net.IP) (Address, bool) {
	p, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Address{}, false
	}
	return FromIP(p)
}

// FromMAC 由硬件地址构造。
func FromMAC(m MAC) Address {
	return Address{kind: KindHardware, hw: m}
}

// FromHardwareAddr 由 net.HardwareAddr 构造，仅接受 6 字节地址。
func FromHardwareAddr(hw net.HardwareAddr) (Address, bool) {
	m, ok := MACFromBytes(hw)
	if !ok {
		return Address{}, false
	}
	return FromMAC(m), true
}

// Kind 返回地址种类。
func (a Address) Kind() Kind { return a.kind }

func (a Address) IsValid() bool    { return a.kind != KindInvalid }
func (a Address) IsIPv4() bool     { return a.kind == KindIPv4 }
func (a Address) IsIPv6() bool     { return a.kind == KindIPv6 }
func (a Address) IsIP() bool       { return a.kind == KindIPv4 || a.kind == KindIPv6 }
func (a Address) IsHardware() bool { return a.kind == KindHardware }

// AsIPv4 提取 IPv4 地址，种类不符时 ok 为 false。
func (a Address) AsIPv4() (netip.Addr, bool) {
	if a.kind != KindIPv4 {
		return netip.Addr{}, false
	}
	return a.ip, true
}

// AsIPv6 提取 IPv6 地址。
func (a Address) AsIPv6() (netip.Addr, bool) {
	if a.kind != KindIPv6 {
		return netip.Addr{}, false
	}
	return a.ip, true
}

// AsIP 提取任一 IP 地址。
func (a Address) AsIP() (netip.Addr, bool) {
	if !a.IsIP() {
		return netip.Addr{}, false
	}
	return a.ip, true
}

// AsHardware 提取硬件地址。
func (a Address) AsHardware() (MAC, bool) {
	if a.kind != KindHardware {
		return MAC{}, false
	}
	return a.hw, true
}

// ToIP 与 AsIP 相同，但以 ErrInvalidAddress 报告种类不符。
func (a Address) ToIP() (netip.Addr, error) {
	ip, ok := a.AsIP()
	if !ok {
		return netip.Addr{}, ErrInvalidAddress
	}
	return ip, nil
}

// ToHardware 与 AsHardware 相同，但以 ErrInvalidAddress 报告种类不符。
func (a Address) ToHardware() (MAC, error) {
	m, ok := a.AsHardware()
	if !ok {
		return MAC{}, ErrInvalidAddress
	}
	return m, nil
}

// Equal 按种类与取值比较。
func (a Address) Equal(b Address) bool {
	if a.kind != b.kind {
		return false
	}
	if a.IsIP() {
		return a.ip == b.ip
	}
	return a.hw == b.hw
}

// Compare 给出全序，便于排序与去重。IP 在前，硬件地址在后。
func (a Address) Compare(b Address) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	if a.IsIP() {
		return a.ip.Compare(b.ip)
	}
	return a.hw.Compare(b.hw)
}

func (a Address) String() string {
	switch a.kind {
	case KindIPv4, KindIPv6:
		return a.ip.String()
	case KindHardware:
		return a.hw.String()
	default:
		return "invalid address"
	}
}
