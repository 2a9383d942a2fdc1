//go:build linux

// Package afpacket 基于 AF_PACKET 原始套接字的 Linux 抓包引擎。
//
// 句柄实现 engine.Handle：激活前通过 SetOption 配置，激活时创建套接字并
// 绑定到网卡；过滤表达式经 bpfexpr 编译为经典 BPF 后用 SO_ATTACH_FILTER
// 挂载。Next 复用同一块读缓冲区，返回的数据在下一次轮询后即被覆盖。
package afpacket

import (
	"fmt"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/engine/bpfexpr"
)

const (
	defaultSnapLen = 65535
	// pollTimeout 套接字读超时。到期的空轮询映射为 engine.ErrTimeout，
	// 由上层迭代器静默重试。
	pollTimeout = 100 * time.Millisecond
)

// Engine 实现 engine.Engine。
type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Open(source string) (engine.Handle, error) {
	link, err := netlink.LinkByName(source)
	if err != nil {
		return nil, fmt.Errorf("afpacket: link by name %q: %w", source, err)
	}
	return &handle{
		source:  source,
		ifindex: link.Attrs().Index,
		fd:      -1,
		snaplen: defaultSnapLen,
	}, nil
}

type handle struct {
	source  string
	ifindex int
	fd      int

	snaplen   int
	bufSize   int
	promisc   bool
	immediate bool

	activated bool
	readBuf   []byte
	lastErr   string
}

func (h *handle) SetOption(opt engine.Option, value int) error {
	if h.activated {
		return engine.ErrActivated
	}
	switch opt {
	case engine.OptSnapLen:
		if value <= 0 {
			return fmt.Errorf("afpacket: invalid snap length %d", value)
		}
		h.snaplen = value
	case engine.OptBufferSize:
		if value <= 0 {
			return fmt.Errorf("afpacket: invalid buffer size %d", value)
		}
		h.bufSize = value
	case engine.OptPromiscuous:
		h.promisc = value != 0
	case engine.OptImmediate:
		// AF_PACKET 无环形缓冲时本就逐包交付，记录但无需动作
		h.immediate = value != 0
	default:
		return fmt.Errorf("afpacket: unknown option %d", int(opt))
	}
	return nil
}

func (h *handle) Activate() error {
	if h.activated {
		return engine.ErrActivated
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return h.fail("socket", err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  h.ifindex,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return h.fail("bind", err)
	}

	if h.promisc {
		mreq := &unix.PacketMreq{
			Ifindex: int32(h.ifindex),
			Type:    unix.PACKET_MR_PROMISC,
		}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
			unix.Close(fd)
			return h.fail("promiscuous mode", err)
		}
	}

	if h.bufSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, h.bufSize); err != nil {
			unix.Close(fd)
			return h.fail("receive buffer", err)
		}
	}

	tv := unix.NsecToTimeval(pollTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return h.fail("read timeout", err)
	}

	h.fd = fd
	h.readBuf = make([]byte, h.snaplen)
	h.activated = true
	return nil
}

func (h *handle) CompileFilter(expr string) (engine.Program, error) {
	raw, err := bpfexpr.CompileRaw(expr)
	if err != nil {
		h.lastErr = err.Error()
		return nil, err
	}
	return &program{ins: raw}, nil
}

func (h *handle) SetFilter(p engine.Program) error {
	if !h.activated {
		return engine.ErrNotActivated
	}
	ins := p.Instructions()
	if len(ins) == 0 {
		return fmt.Errorf("afpacket: empty filter program")
	}
	filters := make([]unix.SockFilter, len(ins))
	for i, r := range ins {
		filters[i] = unix.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}
	if err := unix.SetsockoptSockFprog(h.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog); err != nil {
		return h.fail("attach filter", err)
	}
	return nil
}

func (h *handle) Next() (*engine.Capture, error) {
	if !h.activated {
		return nil, engine.ErrNotActivated
	}
	n, _, err := unix.Recvfrom(h.fd, h.readBuf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil, engine.ErrTimeout
		}
		return nil, h.fail("recvfrom", err)
	}
	return &engine.Capture{
		Timestamp: time.Now(),
		Data:      h.readBuf[:n],
	}, nil
}

func (h *handle) Inject(buf []byte) (int, error) {
	if !h.activated {
		return 0, engine.ErrNotActivated
	}
	n, err := unix.Write(h.fd, buf)
	if err != nil {
		return 0, h.fail("inject", err)
	}
	return n, nil
}

func (h *handle) Stats() (engine.Stats, error) {
	if !h.activated {
		return engine.Stats{}, engine.ErrNotActivated
	}
	st, err := unix.GetsockoptTpacketStats(h.fd, unix.SOL_PACKET, unix.PACKET_STATISTICS)
	if err != nil {
		return engine.Stats{}, h.fail("statistics", err)
	}
	return engine.Stats{
		Received: st.Packets,
		Dropped:  st.Drops,
	}, nil
}

func (h *handle) LastError() (string, error) {
	return h.lastErr, nil
}

func (h *handle) Close() {
	if h.fd >= 0 {
		unix.Close(h.fd)
		h.fd = -1
	}
	h.readBuf = nil
}

// fail 记录错误文本供 LastError 返回，并把原因包装后上抛。
func (h *handle) fail(op string, err error) error {
	wrapped := fmt.Errorf("afpacket: %s: %w", op, err)
	h.lastErr = wrapped.Error()
	return wrapped
}

type program struct {
	ins []bpf.RawInstruction
}

func (p *program) Instructions() []bpf.RawInstruction { return p.ins }

func (p *program) Free() { p.ins = nil }

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
