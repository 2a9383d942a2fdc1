package devices_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/norpex/livecap/addr"
	"github.com/norpex/livecap/devices"
	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/engine/enginetest"
)

func v4(b ...byte) engine.SockAddr {
	return engine.SockAddr{Family: engine.FamilyIPv4, Data: b}
}

func v6(ip netip.Addr) engine.SockAddr {
	b := ip.As16()
	return engine.SockAddr{Family: engine.FamilyIPv6, Data: b[:]}
}

func testFake() *enginetest.Fake {
	return &enginetest.Fake{Devices: []enginetest.Device{
		{
			Name:  "lo",
			Flags: engine.FlagLoopback | engine.FlagUp | engine.FlagRunning,
			Addrs: []engine.AddrNode{
				{Addr: v4(127, 0, 0, 1), Netmask: &engine.SockAddr{Family: engine.FamilyIPv4, Data: []byte{255, 0, 0, 0}}},
			},
		},
		{
			Name:        "eth0",
			Description: "uplink",
			Flags:       engine.FlagUp | engine.FlagRunning,
			Addrs: []engine.AddrNode{
				{Addr: engine.SockAddr{Family: engine.FamilyLink, Data: []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}}},
				{Addr: v4(192, 168, 1, 10), Netmask: &engine.SockAddr{Family: engine.FamilyIPv4, Data: []byte{255, 255, 255, 0}}},
				{Addr: v6(netip.MustParseAddr("fe80::1"))},
				// 未知地址族，应被静默跳过并计数
				{Addr: engine.SockAddr{Family: 99, Data: []byte{1, 2}}},
				// 与上面重复的地址记录，应被去重
				{Addr: v4(192, 168, 1, 10), Netmask: &engine.SockAddr{Family: engine.FamilyIPv4, Data: []byte{255, 255, 255, 0}}},
			},
		},
		{
			// 无名节点整个跳过
			Name: "",
		},
		{
			Name:  "wlan0",
			Flags: engine.FlagUp,
		},
	}}
}

func TestListInterfaces(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	ifaces := dl.Interfaces()
	assert.Len(ifaces, 3)

	lo := ifaces[0]
	assert.Equal("lo", lo.Name)
	assert.True(lo.IsLoopback())
	assert.True(lo.IsUp())
	assert.True(lo.IsRunning())
	assert.Len(lo.Addresses, 1)
	assert.True(lo.Addresses[0].Addr.IsIPv4())
	assert.NotNil(lo.Addresses[0].Netmask)

	eth := ifaces[1]
	assert.Equal("eth0", eth.Name)
	assert.Equal("uplink", eth.Description)
	assert.False(eth.IsLoopback())
	// 链路层 + IPv4 + IPv6，重复项被去重
	assert.Len(eth.Addresses, 3)

	hw, ok := eth.HardwareAddr()
	assert.True(ok)
	assert.Equal("de:ad:be:ef:00:01", hw.String())

	assert.Equal("wlan0", ifaces[2].Name)
	assert.False(ifaces[2].IsRunning())
}

func TestSkippedCount(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	dl.Interfaces()
	assert.Equal(1, dl.Skipped())
}

// 枚举只发生一次，重复查询不得重复累计跳过计数。
func TestSkippedStableAcrossTraversals(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	dl.Interfaces()
	assert.Equal(1, dl.Skipped())

	dl.FindByName("eth0")
	dl.FindByIP(netip.MustParseAddr("192.168.1.10"))
	dl.Interfaces()
	assert.Equal(1, dl.Skipped())
}

func TestFindByName(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	ifc, ok := dl.FindByName("eth0")
	assert.True(ok)
	assert.Equal("eth0", ifc.Name)

	_, ok = dl.FindByName("nonexistent0")
	assert.False(ok)
}

func TestFindByIP(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	ifc, ok := dl.FindByIP(netip.MustParseAddr("192.168.1.10"))
	assert.True(ok)
	assert.Equal("eth0", ifc.Name)

	// 4-in-6 形式的同一地址也应命中
	ifc, ok = dl.FindByIP(netip.MustParseAddr("::ffff:192.168.1.10"))
	assert.True(ok)
	assert.Equal("eth0", ifc.Name)

	_, ok = dl.FindByIP(netip.MustParseAddr("10.9.9.9"))
	assert.False(ok)
}

func TestIterWalkOnce(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	it := dl.Iter()
	var names []string
	for ifc, ok := it.Next(); ok; ifc, ok = it.Next() {
		names = append(names, ifc.Name)
	}
	assert.Equal([]string{"lo", "eth0", "wlan0"}, names)

	// 迭代器只前向走一遍
	_, ok := it.Next()
	assert.False(ok)
}

func TestCloseOnce(t *testing.T) {
	assert := assert.New(t)

	fake := testFake()
	dl, err := devices.List(fake)
	assert.NoError(err)

	dl.Close()
	dl.Close()
	dl.Close()
	assert.Equal(1, fake.FreedLists)

	// 释放后的遍历产出为空
	assert.Empty(dl.Interfaces())
}

func TestListError(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("enumeration failed")
	dl, err := devices.List(&enginetest.Fake{ListErr: cause})
	assert.Nil(dl)
	assert.ErrorIs(err, cause)
}

func TestInterfaceAddresses(t *testing.T) {
	assert := assert.New(t)

	dl, err := devices.List(testFake())
	assert.NoError(err)
	defer dl.Close()

	eth, ok := dl.FindByName("eth0")
	assert.True(ok)

	ips := eth.IPAddresses()
	assert.Len(ips, 2)
	assert.Contains(ips, netip.MustParseAddr("192.168.1.10"))
	assert.Contains(ips, netip.MustParseAddr("fe80::1"))

	want, _ := addr.FromIP(netip.MustParseAddr("192.168.1.10"))
	found := false
	for _, ia := range eth.Addresses {
		if ia.Addr.Equal(want) {
			found = true
		}
	}
	assert.True(found)
}
