package addr_test

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/norpex/livecap/addr"
)

func TestFromIPv4(t *testing.T) {
	assert := assert.New(t)

	a, ok := addr.FromIP(netip.MustParseAddr("192.0.2.1"))
	assert.True(ok)
	assert.Equal(addr.KindIPv4, a.Kind())
	assert.True(a.IsIPv4())
	assert.True(a.IsIP())
	assert.False(a.IsIPv6())
	assert.False(a.IsHardware())

	ip, ok := a.AsIPv4()
	assert.True(ok)
	assert.Equal("192.0.2.1", ip.String())

	_, ok = a.AsIPv6()
	assert.False(ok)
	_, ok = a.AsHardware()
	assert.False(ok)

	_, err := a.ToHardware()
	assert.ErrorIs(err, addr.ErrInvalidAddress)
	got, err := a.ToIP()
	assert.NoError(err)
	assert.Equal(ip, got)
}

func TestFromIPv6(t *testing.T) {
	assert := assert.New(t)

	a, ok := addr.FromIP(netip.MustParseAddr("2001:db8::1"))
	assert.True(ok)
	assert.Equal(addr.KindIPv6, a.Kind())
	assert.True(a.IsIPv6())
	assert.False(a.IsIPv4())

	ip, ok := a.AsIPv6()
	assert.True(ok)
	assert.Equal("2001:db8::1", ip.String())
}

// 4-in-6 映射地址按 IPv4 归类，与原生 IPv4 相等。
func TestMappedIPv4Unwrapped(t *testing.T) {
	assert := assert.New(t)

	mapped, ok := addr.FromIP(netip.MustParseAddr("::ffff:192.0.2.1"))
	assert.True(ok)
	assert.True(mapped.IsIPv4())

	plain, _ := addr.FromIP(netip.MustParseAddr("192.0.2.1"))
	assert.True(mapped.Equal(plain))
	assert.Zero(mapped.Compare(plain))
}

func TestFromNetIP(t *testing.T) {
	assert := assert.New(t)

	a, ok := addr.FromNetIP(net.IPv4(10, 0, 0, 1))
	assert.True(ok)
	assert.True(a.IsIPv4())
	assert.Equal("10.0.0.1", a.String())

	_, ok = addr.FromNetIP(net.IP{1, 2, 3})
	assert.False(ok)
}

func TestHardwareAddress(t *testing.T) {
	assert := assert.New(t)

	m, ok := addr.ParseMAC("de:ad:be:ef:00:01")
	assert.True(ok)

	a := addr.FromMAC(m)
	assert.Equal(addr.KindHardware, a.Kind())
	assert.True(a.IsHardware())
	assert.False(a.IsIP())

	got, ok := a.AsHardware()
	assert.True(ok)
	assert.Equal(m, got)
	assert.Equal("de:ad:be:ef:00:01", a.String())

	_, err := a.ToIP()
	assert.ErrorIs(err, addr.ErrInvalidAddress)

	hw, err := a.ToHardware()
	assert.NoError(err)
	assert.Equal(net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}, hw.HardwareAddr())
}

func TestFromHardwareAddrLength(t *testing.T) {
	assert := assert.New(t)

	_, ok := addr.FromHardwareAddr(net.HardwareAddr{1, 2, 3, 4, 5, 6, 7, 8})
	assert.False(ok)

	a, ok := addr.FromHardwareAddr(net.HardwareAddr{1, 2, 3, 4, 5, 6})
	assert.True(ok)
	assert.Equal("01:02:03:04:05:06", a.String())
}

func TestZeroValueInvalid(t *testing.T) {
	assert := assert.New(t)

	var a addr.Address
	assert.False(a.IsValid())
	assert.Equal(addr.KindInvalid, a.Kind())
	assert.Equal("invalid address", a.String())

	_, err := a.ToIP()
	assert.ErrorIs(err, addr.ErrInvalidAddress)
	_, err = a.ToHardware()
	assert.ErrorIs(err, addr.ErrInvalidAddress)

	_, ok := addr.FromIP(netip.Addr{})
	assert.False(ok)
}

func TestCompareOrdering(t *testing.T) {
	assert := assert.New(t)

	v4a, _ := addr.FromIP(netip.MustParseAddr("10.0.0.1"))
	v4b, _ := addr.FromIP(netip.MustParseAddr("10.0.0.2"))
	v6, _ := addr.FromIP(netip.MustParseAddr("2001:db8::1"))
	hw := addr.FromMAC(addr.MAC{1, 2, 3, 4, 5, 6})

	assert.Negative(v4a.Compare(v4b))
	assert.Positive(v4b.Compare(v4a))
	assert.Negative(v4a.Compare(v6))
	assert.Negative(v6.Compare(hw))
	assert.Zero(hw.Compare(hw))
}

func TestParseMACRejectsGarbage(t *testing.T) {
	assert := assert.New(t)

	_, ok := addr.ParseMAC("not a mac")
	assert.False(ok)
	// 8 字节的 EUI-64 不是 6 字节 MAC
	_, ok = addr.ParseMAC("01:02:03:04:05:06:07:08")
	assert.False(ok)
}
