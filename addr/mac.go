package addr

import (
	"bytes"
	"encoding/hex"
	"net"
)

// MAC 6 字节硬件地址，值类型。
type MAC [6]byte

// MACFromBytes 仅接受恰好 6 字节的输入。
func MACFromBytes(b []byte) (MAC, bool) {
	if len(b) != 6 {
		return MAC{}, false
	}
	var m MAC
	copy(m[:], b)
	return m, true
}

// ParseMAC 解析 "aa:bb:cc:dd:ee:ff" 形式的地址。
func ParseMAC(s string) (MAC, bool) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, false
	}
	return MACFromBytes(hw)
}

// HardwareAddr 转换为 net.HardwareAddr。
func (m MAC) HardwareAddr() net.HardwareAddr {
	out := make(net.HardwareAddr, 6)
	copy(out, m[:])
	return out
}

func (m MAC) Compare(o MAC) int {
	return bytes.Compare(m[:], o[:])
}

func (m MAC) String() string {
	var buf [17]byte
	for i, b := range m {
		if i > 0 {
			buf[i*3-1] = ':'
		}
		hex.Encode(buf[i*3:i*3+2], []byte{b})
	}
	return string(buf[:])
}
