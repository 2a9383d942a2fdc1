package bpfexpr

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/bpf"
)

// ethFrame 组装一个以太网帧。
func ethFrame(etherType uint16, payload []byte) []byte {
	frame := make([]byte, 14+len(payload))
	binary.BigEndian.PutUint16(frame[12:], etherType)
	copy(frame[14:], payload)
	return frame
}

// ipv4Packet IPv4 头固定 20 字节，payload 紧随其后。
func ipv4Packet(proto byte, src, dst string, payload []byte) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45
	hdr[8] = 64
	hdr[9] = proto
	s := netip.MustParseAddr(src).As4()
	d := netip.MustParseAddr(dst).As4()
	copy(hdr[12:], s[:])
	copy(hdr[16:], d[:])
	return ethFrame(0x0800, append(hdr, payload...))
}

func ipv6Packet(next byte, src, dst string, payload []byte) []byte {
	hdr := make([]byte, 40)
	hdr[0] = 0x60
	hdr[6] = next
	hdr[7] = 64
	s := netip.MustParseAddr(src).As16()
	d := netip.MustParseAddr(dst).As16()
	copy(hdr[8:], s[:])
	copy(hdr[24:], d[:])
	return ethFrame(0x86dd, append(hdr, payload...))
}

func transport(srcPort, dstPort uint16) []byte {
	seg := make([]byte, 20)
	binary.BigEndian.PutUint16(seg[0:], srcPort)
	binary.BigEndian.PutUint16(seg[2:], dstPort)
	return seg
}

// matches 编译表达式并在 BPF 虚拟机里跑一个包。
func matches(t *testing.T, expr string, pkt []byte) bool {
	t.Helper()
	ins, err := Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	vm, err := bpf.NewVM(ins)
	if err != nil {
		t.Fatalf("vm for %q: %v", expr, err)
	}
	out, err := vm.Run(pkt)
	if err != nil {
		t.Fatalf("run %q: %v", expr, err)
	}
	return out > 0
}

func TestProtocols(t *testing.T) {
	assert := assert.New(t)

	icmp := ipv4Packet(1, "10.0.0.1", "10.0.0.2", make([]byte, 8))
	tcp4 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(1234, 80))
	udp4 := ipv4Packet(17, "10.0.0.1", "10.0.0.2", transport(53, 53))
	tcp6 := ipv6Packet(6, "2001:db8::1", "2001:db8::2", transport(1234, 80))
	icmp6 := ipv6Packet(58, "fe80::1", "fe80::2", make([]byte, 8))
	arp := ethFrame(0x0806, make([]byte, 28))

	assert.True(matches(t, "icmp", icmp))
	assert.False(matches(t, "icmp", tcp4))
	assert.False(matches(t, "icmp", icmp6))

	assert.True(matches(t, "icmp6", icmp6))
	assert.False(matches(t, "icmp6", icmp))

	assert.True(matches(t, "tcp", tcp4))
	assert.True(matches(t, "tcp", tcp6))
	assert.False(matches(t, "tcp", udp4))

	assert.True(matches(t, "udp", udp4))
	assert.False(matches(t, "udp", tcp4))

	assert.True(matches(t, "ip", icmp))
	assert.False(matches(t, "ip", tcp6))
	assert.True(matches(t, "ip6", tcp6))
	assert.False(matches(t, "ip6", icmp))

	assert.True(matches(t, "arp", arp))
	assert.False(matches(t, "arp", icmp))

	assert.True(matches(t, "ether", arp))
	assert.True(matches(t, "ether", tcp4))
}

func TestHostMatchesEitherDirection(t *testing.T) {
	assert := assert.New(t)

	out := ipv4Packet(6, "10.0.0.1", "192.0.2.7", transport(1, 2))
	in := ipv4Packet(6, "192.0.2.7", "10.0.0.1", transport(2, 1))
	other := ipv4Packet(6, "10.0.0.2", "192.0.2.8", transport(1, 2))

	assert.True(matches(t, "host 10.0.0.1", out))
	assert.True(matches(t, "host 10.0.0.1", in))
	assert.False(matches(t, "host 10.0.0.1", other))
}

func TestHostIPv6(t *testing.T) {
	assert := assert.New(t)

	out := ipv6Packet(6, "2001:db8::1", "2001:db8::2", transport(1, 2))
	in := ipv6Packet(6, "2001:db8::2", "2001:db8::1", transport(2, 1))
	other := ipv6Packet(6, "2001:db8::3", "2001:db8::4", transport(1, 2))
	v4 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(1, 2))

	assert.True(matches(t, "host 2001:db8::1", out))
	assert.True(matches(t, "host 2001:db8::1", in))
	assert.False(matches(t, "host 2001:db8::1", other))
	assert.False(matches(t, "host 2001:db8::1", v4))
}

func TestNet(t *testing.T) {
	assert := assert.New(t)

	inside := ipv4Packet(6, "192.168.1.10", "8.8.8.8", transport(1, 2))
	back := ipv4Packet(6, "8.8.8.8", "192.168.1.10", transport(2, 1))
	outside := ipv4Packet(6, "192.168.2.10", "8.8.8.8", transport(1, 2))

	assert.True(matches(t, "net 192.168.1.0/24", inside))
	assert.True(matches(t, "net 192.168.1.0/24", back))
	assert.False(matches(t, "net 192.168.1.0/24", outside))

	// 前缀未对齐时按掩码后的网络号匹配
	assert.True(matches(t, "net 192.168.1.99/24", inside))
}

func TestPort(t *testing.T) {
	assert := assert.New(t)

	tcpTo80 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, 80))
	tcpFrom80 := ipv4Packet(6, "10.0.0.2", "10.0.0.1", transport(80, 40000))
	udpTo80 := ipv4Packet(17, "10.0.0.1", "10.0.0.2", transport(40000, 80))
	tcp6To80 := ipv6Packet(6, "2001:db8::1", "2001:db8::2", transport(40000, 80))
	tcpTo443 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, 443))
	icmp := ipv4Packet(1, "10.0.0.1", "10.0.0.2", make([]byte, 8))

	assert.True(matches(t, "port 80", tcpTo80))
	assert.True(matches(t, "port 80", tcpFrom80))
	assert.True(matches(t, "port 80", udpTo80))
	assert.True(matches(t, "port 80", tcp6To80))
	assert.False(matches(t, "port 80", tcpTo443))
	assert.False(matches(t, "port 80", icmp))
}

func TestPortIgnoresFragments(t *testing.T) {
	assert := assert.New(t)

	frag := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, 80))
	// fragment offset 非零，传输层头不在本包里
	binary.BigEndian.PutUint16(frag[14+6:], 0x0064)

	assert.False(matches(t, "port 80", frag))
}

func TestPortRange(t *testing.T) {
	assert := assert.New(t)

	mk := func(dst uint16) []byte {
		return ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, dst))
	}

	assert.True(matches(t, "portrange 8000-8080", mk(8000)))
	assert.True(matches(t, "portrange 8000-8080", mk(8042)))
	assert.True(matches(t, "portrange 8000-8080", mk(8080)))
	assert.False(matches(t, "portrange 8000-8080", mk(7999)))
	assert.False(matches(t, "portrange 8000-8080", mk(8081)))
}

func TestBooleanOperators(t *testing.T) {
	assert := assert.New(t)

	tcpTo443 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, 443))
	udpTo443 := ipv4Packet(17, "10.0.0.1", "10.0.0.2", transport(40000, 443))
	tcpTo80 := ipv4Packet(6, "10.0.0.1", "10.0.0.2", transport(40000, 80))
	icmp := ipv4Packet(1, "10.0.0.1", "10.0.0.2", make([]byte, 8))
	arp := ethFrame(0x0806, make([]byte, 28))

	assert.True(matches(t, "tcp and port 443", tcpTo443))
	assert.False(matches(t, "tcp and port 443", udpTo443))
	assert.False(matches(t, "tcp and port 443", tcpTo80))

	assert.True(matches(t, "icmp or arp", icmp))
	assert.True(matches(t, "icmp or arp", arp))
	assert.False(matches(t, "icmp or arp", tcpTo80))

	assert.True(matches(t, "not ip", arp))
	assert.False(matches(t, "not ip", icmp))

	assert.True(matches(t, "ip and (port 80 or port 443)", tcpTo443))
	assert.True(matches(t, "ip and (port 80 or port 443)", tcpTo80))
	assert.False(matches(t, "ip and (port 80 or port 443)", icmp))

	assert.True(matches(t, "not (tcp and port 443)", tcpTo80))
	assert.False(matches(t, "not (tcp and port 443)", tcpTo443))
}

func TestCompileRaw(t *testing.T) {
	assert := assert.New(t)

	raw, err := CompileRaw("tcp and host 10.1.2.3")
	assert.NoError(err)
	assert.NotEmpty(raw)
}

func TestSyntaxErrors(t *testing.T) {
	assert := assert.New(t)

	cases := []string{
		"",
		"   ",
		"bogus",
		"host",
		"host not.an.address",
		"net 10.0.0.0",
		"port",
		"port 99999",
		"port http",
		"portrange 80",
		"portrange 90-80",
		"(tcp",
		"tcp or",
		"tcp udp",
		"and tcp",
	}
	for _, expr := range cases {
		_, err := Compile(expr)
		assert.Error(err, "expression %q", expr)
		var se *SyntaxError
		assert.ErrorAs(err, &se, "expression %q", expr)
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	assert := assert.New(t)

	_, err := Compile("tcp and bogus")
	var se *SyntaxError
	assert.ErrorAs(err, &se)
	assert.Equal(8, se.Pos)
	assert.Contains(se.Error(), "bogus")
}
