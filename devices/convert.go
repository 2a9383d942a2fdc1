package devices

import (
	"github.com/norpex/livecap/addr"
	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/logx"
)

// convert 把一个原生节点复制为自包含的 Interface。
// 名字缺失视为不可恢复，ok 返回 false。
func (dl *DeviceList) convert(node *engine.DeviceNode) (Interface, bool) {
	if node.Name == "" {
		return Interface{}, false
	}

	ifc := Interface{
		Name:        node.Name,
		Description: node.Description,
		Flags:       convertFlags(node.Flags),
	}

	for an := node.Addrs; an != nil; an = an.Next {
		ia, ok := dl.convertAddr(an)
		if !ok {
			// 无法识别的地址记录静默跳过，只计数
			dl.skipped++
			logx.Debugf("devices: %s: skipping address of family %d", node.Name, an.Addr.Family)
			continue
		}
		if containsAddress(ifc.Addresses, ia) {
			continue
		}
		ifc.Addresses = append(ifc.Addresses, ia)
	}
	return ifc, true
}

func (dl *DeviceList) convertAddr(an *engine.AddrNode) (InterfaceAddress, bool) {
	primary, ok := toAddress(&an.Addr)
	if !ok {
		return InterfaceAddress{}, false
	}
	return InterfaceAddress{
		Addr:        primary,
		Netmask:     toOptAddress(an.Netmask),
		Broadcast:   toOptAddress(an.Broadcast),
		Destination: toOptAddress(an.Destination),
	}, true
}

// toAddress 按地址族解释一条 SockAddr，未知族或长度不符返回 false。
func toAddress(sa *engine.SockAddr) (addr.Address, bool) {
	switch sa.Family {
	case engine.FamilyIPv4:
		if len(sa.Data) != 4 {
			return addr.Address{}, false
		}
		return addr.FromNetIP(sa.Data)
	case engine.FamilyIPv6:
		if len(sa.Data) != 16 {
			return addr.Address{}, false
		}
		return addr.FromNetIP(sa.Data)
	case engine.FamilyLink:
		return addr.FromHardwareAddr(sa.Data)
	default:
		return addr.Address{}, false
	}
}

func toOptAddress(sa *engine.SockAddr) *addr.Address {
	if sa == nil {
		return nil
	}
	a, ok := toAddress(sa)
	if !ok {
		return nil
	}
	return &a
}

func containsAddress(have []InterfaceAddress, ia InterfaceAddress) bool {
	for _, h := range have {
		if h.Equal(ia) {
			return true
		}
	}
	return false
}

func convertFlags(raw uint32) Flags {
	var f Flags
	if raw&engine.FlagLoopback != 0 {
		f |= FlagLoopback
	}
	if raw&engine.FlagUp != 0 {
		f |= FlagUp
	}
	if raw&engine.FlagRunning != 0 {
		f |= FlagRunning
	}
	return f
}
