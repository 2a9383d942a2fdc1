//go:build linux

package afpacket

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/norpex/livecap/engine"
)

// ListDevices 用 netlink 枚举网卡，组装成引擎约定的设备链表。
// 每个设备先挂链路层地址，再挂全部 IP 地址及其掩码。
func (e *Engine) ListDevices() (*engine.DeviceNode, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("afpacket: link list: %w", err)
	}

	var head, tail *engine.DeviceNode
	for _, link := range links {
		attrs := link.Attrs()
		node := &engine.DeviceNode{
			Name:  attrs.Name,
			Flags: linkFlags(attrs),
		}

		var atail *engine.AddrNode
		appendAddr := func(an *engine.AddrNode) {
			if atail == nil {
				node.Addrs = an
			} else {
				atail.Next = an
			}
			atail = an
		}

		if hw := attrs.HardwareAddr; len(hw) == 6 {
			appendAddr(&engine.AddrNode{
				Addr: engine.SockAddr{Family: engine.FamilyLink, Data: append([]byte(nil), hw...)},
			})
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			return nil, fmt.Errorf("afpacket: addr list %s: %w", attrs.Name, err)
		}
		for _, na := range addrs {
			if na.IPNet == nil {
				continue
			}
			an := ipAddrNode(na.IPNet)
			if an == nil {
				continue
			}
			appendAddr(an)
		}

		if tail == nil {
			head = node
		} else {
			tail.Next = node
		}
		tail = node
	}
	return head, nil
}

// FreeDeviceList 切断链表，模拟原生释放：释放后残留引用会立刻暴露。
func (e *Engine) FreeDeviceList(head *engine.DeviceNode) {
	for n := head; n != nil; {
		next := n.Next
		n.Addrs = nil
		n.Next = nil
		n = next
	}
}

func ipAddrNode(ipn *net.IPNet) *engine.AddrNode {
	if v4 := ipn.IP.To4(); v4 != nil {
		an := &engine.AddrNode{
			Addr: engine.SockAddr{Family: engine.FamilyIPv4, Data: append([]byte(nil), v4...)},
		}
		if len(ipn.Mask) == 4 {
			an.Netmask = &engine.SockAddr{Family: engine.FamilyIPv4, Data: append([]byte(nil), ipn.Mask...)}
		}
		return an
	}
	if v6 := ipn.IP.To16(); v6 != nil {
		an := &engine.AddrNode{
			Addr: engine.SockAddr{Family: engine.FamilyIPv6, Data: append([]byte(nil), v6...)},
		}
		if len(ipn.Mask) == 16 {
			an.Netmask = &engine.SockAddr{Family: engine.FamilyIPv6, Data: append([]byte(nil), ipn.Mask...)}
		}
		return an
	}
	return nil
}

func linkFlags(attrs *netlink.LinkAttrs) uint32 {
	var f uint32
	if attrs.Flags&net.FlagLoopback != 0 {
		f |= engine.FlagLoopback
	}
	if attrs.Flags&net.FlagUp != 0 {
		f |= engine.FlagUp
	}
	if attrs.RawFlags&unix.IFF_RUNNING != 0 {
		f |= engine.FlagRunning
	}
	return f
}
