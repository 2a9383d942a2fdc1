// Package pcaplive 把 gopacket 的 libpcap 绑定适配为 engine.Engine。
//
// 句柄把激活前/后的两段生命周期映射到 pcap 的 InactiveHandle 与 Handle，
// 轮询走零拷贝路径，返回的数据与 libpcap 一样只在下一次轮询前有效。
package pcaplive

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gopacket/gopacket/pcap"
	"golang.org/x/net/bpf"

	"github.com/norpex/livecap/engine"
)

// Engine 实现 engine.Engine。
type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Open(source string) (engine.Handle, error) {
	inactive, err := pcap.NewInactiveHandle(source)
	if err != nil {
		return nil, fmt.Errorf("pcaplive: open %q: %w", source, err)
	}
	// 阻塞读配合 libpcap 自身的超时机制
	if err := inactive.SetTimeout(pcap.BlockForever); err != nil {
		inactive.CleanUp()
		return nil, fmt.Errorf("pcaplive: set timeout: %w", err)
	}
	return &handle{inactive: inactive}, nil
}

type handle struct {
	inactive *pcap.InactiveHandle
	active   *pcap.Handle
}

func (h *handle) SetOption(opt engine.Option, value int) error {
	if h.active != nil {
		return engine.ErrActivated
	}
	switch opt {
	case engine.OptSnapLen:
		return h.inactive.SetSnapLen(value)
	case engine.OptBufferSize:
		return h.inactive.SetBufferSize(value)
	case engine.OptPromiscuous:
		return h.inactive.SetPromisc(value != 0)
	case engine.OptImmediate:
		return h.inactive.SetImmediateMode(value != 0)
	default:
		return fmt.Errorf("pcaplive: unknown option %d", int(opt))
	}
}

func (h *handle) Activate() error {
	if h.active != nil {
		return engine.ErrActivated
	}
	active, err := h.inactive.Activate()
	if err != nil {
		return fmt.Errorf("pcaplive: activate: %w", err)
	}
	h.active = active
	return nil
}

func (h *handle) CompileFilter(expr string) (engine.Program, error) {
	if h.active == nil {
		return nil, engine.ErrNotActivated
	}
	ins, err := h.active.CompileBPFFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("pcaplive: compile %q: %w", expr, err)
	}
	return &program{ins: ins}, nil
}

func (h *handle) SetFilter(p engine.Program) error {
	if h.active == nil {
		return engine.ErrNotActivated
	}
	bp, ok := p.(*program)
	if !ok {
		return fmt.Errorf("pcaplive: foreign filter program %T", p)
	}
	if err := h.active.SetBPFInstructionFilter(bp.ins); err != nil {
		return fmt.Errorf("pcaplive: set filter: %w", err)
	}
	return nil
}

func (h *handle) Next() (*engine.Capture, error) {
	if h.active == nil {
		return nil, engine.ErrNotActivated
	}
	data, ci, err := h.active.ZeroCopyReadPacketData()
	if err != nil {
		switch err {
		case pcap.NextErrorTimeoutExpired:
			return nil, engine.ErrTimeout
		case io.EOF:
			return nil, io.EOF
		}
		return nil, fmt.Errorf("pcaplive: read: %w", err)
	}
	ts := ci.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &engine.Capture{Timestamp: ts, Data: data}, nil
}

func (h *handle) Inject(buf []byte) (int, error) {
	if h.active == nil {
		return 0, engine.ErrNotActivated
	}
	if err := h.active.WritePacketData(buf); err != nil {
		return 0, fmt.Errorf("pcaplive: inject: %w", err)
	}
	return len(buf), nil
}

func (h *handle) Stats() (engine.Stats, error) {
	if h.active == nil {
		return engine.Stats{}, engine.ErrNotActivated
	}
	st, err := h.active.Stats()
	if err != nil {
		return engine.Stats{}, fmt.Errorf("pcaplive: stats: %w", err)
	}
	return engine.Stats{
		Received:  uint32(st.PacketsReceived),
		Dropped:   uint32(st.PacketsDropped),
		IfDropped: uint32(st.PacketsIfDropped),
	}, nil
}

func (h *handle) LastError() (string, error) {
	if h.active == nil {
		return "", engine.ErrNotActivated
	}
	if err := h.active.Error(); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

func (h *handle) Close() {
	if h.active != nil {
		h.active.Close()
		h.active = nil
		return
	}
	h.inactive.CleanUp()
}

// program 持有 pcap 原生指令，同时能按契约导出通用的原始指令形式。
type program struct {
	ins []pcap.BPFInstruction
}

func (p *program) Instructions() []bpf.RawInstruction {
	out := make([]bpf.RawInstruction, len(p.ins))
	for i, in := range p.ins {
		out[i] = bpf.RawInstruction{Op: in.Code, Jt: in.Jt, Jf: in.Jf, K: in.K}
	}
	return out
}

func (p *program) Free() { p.ins = nil }

// ListDevices 枚举 libpcap 可见的设备。
func (e *Engine) ListDevices() (*engine.DeviceNode, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("pcaplive: find devices: %w", err)
	}

	var head, tail *engine.DeviceNode
	for _, d := range devs {
		node := &engine.DeviceNode{
			Name:        d.Name,
			Description: d.Description,
			Flags:       d.Flags,
		}
		var atail *engine.AddrNode
		for _, a := range d.Addresses {
			an := &engine.AddrNode{}
			sa := ipSockAddr(a.IP)
			if sa == nil {
				continue
			}
			an.Addr = *sa
			an.Netmask = ipSockAddr(net.IP(a.Netmask))
			an.Broadcast = ipSockAddr(a.Broadaddr)
			an.Destination = ipSockAddr(a.P2P)
			if atail == nil {
				node.Addrs = an
			} else {
				atail.Next = an
			}
			atail = an
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

func (e *Engine) FreeDeviceList(head *engine.DeviceNode) {
	for n := head; n != nil; {
		next := n.Next
		n.Addrs = nil
		n.Next = nil
		n = next
	}
}

func ipSockAddr(ip net.IP) *engine.SockAddr {
	if v4 := ip.To4(); v4 != nil {
		return &engine.SockAddr{Family: engine.FamilyIPv4, Data: append([]byte(nil), v4...)}
	}
	if v6 := ip.To16(); v6 != nil {
		return &engine.SockAddr{Family: engine.FamilyIPv6, Data: append([]byte(nil), v6...)}
	}
	return nil
}
