package engine

// 设备链表的地址族取值，与常见平台的 AF_* 保持一致。
const (
	FamilyIPv4 = 2  // AF_INET
	FamilyIPv6 = 10 // AF_INET6
	FamilyLink = 17 // AF_PACKET / AF_LINK
)

// 设备标志位，对应 PCAP_IF_*。
const (
	FlagLoopback uint32 = 0x1
	FlagUp       uint32 = 0x2
	FlagRunning  uint32 = 0x4
)

// SockAddr 一条原始地址记录。Data 的长度由 Family 决定：
// IPv4 为 4 字节，IPv6 为 16 字节，链路层为 6 字节。
// 未知的 Family 由上层跳过，不算错误。
type SockAddr struct {
	Family int
	Data   []byte
}

// AddrNode 设备地址链表的节点。
type AddrNode struct {
	Addr        SockAddr
	Netmask     *SockAddr
	Broadcast   *SockAddr
	Destination *SockAddr
	Next        *AddrNode
}

// DeviceNode 设备链表的节点。
//
// 约定：链表只能前向遍历一次，遍历后通过 DeviceLister.FreeDeviceList
// 整体释放一次；节点内容在释放后不可再引用。
type DeviceNode struct {
	Name        string
	Description string
	Flags       uint32
	Addrs       *AddrNode
	Next        *DeviceNode
}
