package bpfexpr

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"golang.org/x/net/bpf"
)

// 以太网帧内的固定偏移。
const (
	offEtherType = 12
	offIPv4      = 14
	offIPv4Frag  = offIPv4 + 6
	offIPv4Proto = offIPv4 + 9
	offIPv4Src   = offIPv4 + 12
	offIPv4Dst   = offIPv4 + 16
	offIPv6Next  = offIPv4 + 6
	offIPv6Src   = offIPv4 + 8
	offIPv6Dst   = offIPv4 + 24
	offIPv6Paylo = offIPv4 + 40
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86dd
	etherTypeARP  = 0x0806
)

const (
	protoICMP   = 1
	protoTCP    = 6
	protoUDP    = 17
	protoICMPv6 = 58
)

// matchedLen 命中时交付的最大字节数，沿用 tcpdump 的取值。
const matchedLen = 0x40000

// Compile 把过滤表达式编译为 BPF 指令序列。
// 语法错误返回 *SyntaxError，语义上无法下沉到经典 BPF 的结构返回普通错误。
func Compile(expr string) ([]bpf.Instruction, error) {
	n, err := parse(expr)
	if err != nil {
		return nil, err
	}

	e := &emitter{}
	blk, err := e.emit(n)
	if err != nil {
		return nil, err
	}

	trueAt := len(e.ins)
	e.ins = append(e.ins, bpf.RetConstant{Val: matchedLen})
	falseAt := len(e.ins)
	e.ins = append(e.ins, bpf.RetConstant{Val: 0})

	if err := e.patch(blk.t, trueAt); err != nil {
		return nil, err
	}
	if err := e.patch(blk.f, falseAt); err != nil {
		return nil, err
	}
	return e.ins, nil
}

// CompileRaw 编译并汇编为可直接挂载的原始指令。
func CompileRaw(expr string) ([]bpf.RawInstruction, error) {
	ins, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(ins)
	if err != nil {
		return nil, fmt.Errorf("bpfexpr: assemble: %w", err)
	}
	return raw, nil
}

// hole 待回填的跳转。条件跳转的某一分支或无条件跳转指向尚未确定的目标。
type hole struct {
	idx    int
	onTrue bool // 对 JumpIf 有效；对 Jump 忽略
}

// block 一段已生成代码对外暴露的真/假出口。
type block struct {
	t []hole
	f []hole
}

type emitter struct {
	ins []bpf.Instruction
}

func (e *emitter) emit(n *node) (block, error) {
	switch n.typ {
	case nodeAnd:
		left, err := e.emit(n.left)
		if err != nil {
			return block{}, err
		}
		if err := e.patch(left.t, len(e.ins)); err != nil {
			return block{}, err
		}
		right, err := e.emit(n.right)
		if err != nil {
			return block{}, err
		}
		return block{t: right.t, f: append(left.f, right.f...)}, nil

	case nodeOr:
		left, err := e.emit(n.left)
		if err != nil {
			return block{}, err
		}
		if err := e.patch(left.f, len(e.ins)); err != nil {
			return block{}, err
		}
		right, err := e.emit(n.right)
		if err != nil {
			return block{}, err
		}
		return block{t: append(left.t, right.t...), f: right.f}, nil

	case nodeNot:
		inner, err := e.emit(n.left)
		if err != nil {
			return block{}, err
		}
		return block{t: inner.f, f: inner.t}, nil

	case nodeProto:
		return e.emitProto(n.proto)
	case nodeHost:
		return e.emitHost(n.host)
	case nodeNet:
		return e.emitNet(n.network)
	case nodePort:
		return e.emitPorts(n.portLo, n.portHi)
	case nodePortRange:
		return e.emitPorts(n.portLo, n.portHi)
	default:
		return block{}, fmt.Errorf("bpfexpr: unsupported node %d", n.typ)
	}
}

// patch 把一组悬空跳转指向 target。经典 BPF 的跳转距离最多 255 条指令。
func (e *emitter) patch(holes []hole, target int) error {
	for _, h := range holes {
		skip := target - h.idx - 1
		if skip < 0 || skip > 255 {
			return fmt.Errorf("bpfexpr: filter too complex: jump offset %d", skip)
		}
		switch ins := e.ins[h.idx].(type) {
		case bpf.JumpIf:
			if h.onTrue {
				ins.SkipTrue = uint8(skip)
			} else {
				ins.SkipFalse = uint8(skip)
			}
			e.ins[h.idx] = ins
		case bpf.Jump:
			ins.Skip = uint32(skip)
			e.ins[h.idx] = ins
		default:
			return fmt.Errorf("bpfexpr: patching non-jump instruction %T", ins)
		}
	}
	return nil
}

// jumpEq 生成 A==val 的条件跳转，两个分支都悬空。
func (e *emitter) jumpEq(val uint32) block {
	idx := len(e.ins)
	e.ins = append(e.ins, bpf.JumpIf{Cond: bpf.JumpEqual, Val: val})
	return block{t: []hole{{idx, true}}, f: []hole{{idx, false}}}
}

func (e *emitter) loadAbs(off uint32, size int) {
	e.ins = append(e.ins, bpf.LoadAbsolute{Off: off, Size: size})
}

// always 生成一个无条件跳转并把它作为真出口返回。
func (e *emitter) always() block {
	idx := len(e.ins)
	e.ins = append(e.ins, bpf.Jump{})
	return block{t: []hole{{idx: idx}}}
}

// etherType 检查帧的以太网类型。
func (e *emitter) etherType(v uint16) block {
	e.loadAbs(offEtherType, 2)
	return e.jumpEq(uint32(v))
}

func (e *emitter) emitProto(proto string) (block, error) {
	switch proto {
	case "ether":
		return e.always(), nil
	case "ip":
		return e.etherType(etherTypeIPv4), nil
	case "ip6":
		return e.etherType(etherTypeIPv6), nil
	case "arp":
		return e.etherType(etherTypeARP), nil
	case "icmp":
		return e.ipProto(protoICMP, false), nil
	case "icmp6":
		return e.ip6Proto(protoICMPv6), nil
	case "tcp":
		return e.ipProto(protoTCP, true), nil
	case "udp":
		return e.ipProto(protoUDP, true), nil
	default:
		return block{}, fmt.Errorf("bpfexpr: unsupported protocol %q", proto)
	}
}

// ipProto 匹配 IPv4（及可选 IPv6）载荷协议号。
func (e *emitter) ipProto(proto uint32, alsoV6 bool) block {
	var out block

	if alsoV6 {
		v6 := e.etherType(etherTypeIPv6)
		// v6 为真：检查固定头的 next header
		_ = e.patchLocal(v6.t)
		e.loadAbs(offIPv6Next, 1)
		cmp := e.jumpEq(proto)
		out.t = append(out.t, cmp.t...)
		out.f = append(out.f, cmp.f...)
		// v6 为假：落到 v4 检查
		_ = e.patchLocal(v6.f)
		e.loadAbs(offEtherType, 2)
	} else {
		e.loadAbs(offEtherType, 2)
	}

	isV4 := e.jumpEq(etherTypeIPv4)
	out.f = append(out.f, isV4.f...)
	_ = e.patchLocal(isV4.t)
	e.loadAbs(offIPv4Proto, 1)
	cmp := e.jumpEq(proto)
	out.t = append(out.t, cmp.t...)
	out.f = append(out.f, cmp.f...)
	return out
}

func (e *emitter) ip6Proto(proto uint32) block {
	var out block
	isV6 := e.etherType(etherTypeIPv6)
	out.f = append(out.f, isV6.f...)
	_ = e.patchLocal(isV6.t)
	e.loadAbs(offIPv6Next, 1)
	cmp := e.jumpEq(proto)
	out.t = append(out.t, cmp.t...)
	out.f = append(out.f, cmp.f...)
	return out
}

// patchLocal 将悬空跳转指向当前位置，即下一条将要生成的指令。
func (e *emitter) patchLocal(holes []hole) error {
	return e.patch(holes, len(e.ins))
}

func (e *emitter) emitHost(ip netip.Addr) (block, error) {
	if ip.Is4() {
		return e.emitHost4(ip), nil
	}
	return e.emitHost6(ip), nil
}

func (e *emitter) emitHost4(ip netip.Addr) block {
	v4 := ip.As4()
	word := binary.BigEndian.Uint32(v4[:])
	var out block

	isV4 := e.etherType(etherTypeIPv4)
	out.f = append(out.f, isV4.f...)
	_ = e.patchLocal(isV4.t)

	e.loadAbs(offIPv4Src, 4)
	src := e.jumpEq(word)
	out.t = append(out.t, src.t...)
	_ = e.patchLocal(src.f)

	e.loadAbs(offIPv4Dst, 4)
	dst := e.jumpEq(word)
	out.t = append(out.t, dst.t...)
	out.f = append(out.f, dst.f...)
	return out
}

func (e *emitter) emitHost6(ip netip.Addr) block {
	v6 := ip.As16()
	var out block

	isV6 := e.etherType(etherTypeIPv6)
	out.f = append(out.f, isV6.f...)
	_ = e.patchLocal(isV6.t)

	// 源地址：四个字逐一比较，任何一个不匹配就转去比较目的地址
	var toDst []hole
	for i := 0; i < 4; i++ {
		word := binary.BigEndian.Uint32(v6[i*4 : i*4+4])
		e.loadAbs(uint32(offIPv6Src+i*4), 4)
		cmp := e.jumpEq(word)
		if i == 3 {
			out.t = append(out.t, cmp.t...)
		} else {
			_ = e.patchLocal(cmp.t)
		}
		toDst = append(toDst, cmp.f...)
	}

	_ = e.patchLocal(toDst)
	for i := 0; i < 4; i++ {
		e.loadAbs(uint32(offIPv6Dst+i*4), 4)
		cmp := e.jumpEq(binary.BigEndian.Uint32(v6[i*4 : i*4+4]))
		if i == 3 {
			out.t = append(out.t, cmp.t...)
			out.f = append(out.f, cmp.f...)
		} else {
			_ = e.patchLocal(cmp.t)
			out.f = append(out.f, cmp.f...)
		}
	}
	return out
}

func (e *emitter) emitNet(prefix netip.Prefix) (block, error) {
	if !prefix.Addr().Is4() {
		return block{}, fmt.Errorf("bpfexpr: ipv6 networks not supported in classic bpf output")
	}
	bits := prefix.Bits()
	mask := uint32(0)
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	v4 := prefix.Addr().As4()
	network := binary.BigEndian.Uint32(v4[:]) & mask

	var out block
	isV4 := e.etherType(etherTypeIPv4)
	out.f = append(out.f, isV4.f...)
	_ = e.patchLocal(isV4.t)

	e.loadAbs(offIPv4Src, 4)
	e.ins = append(e.ins, bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: mask})
	src := e.jumpEq(network)
	out.t = append(out.t, src.t...)
	_ = e.patchLocal(src.f)

	e.loadAbs(offIPv4Dst, 4)
	e.ins = append(e.ins, bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: mask})
	dst := e.jumpEq(network)
	out.t = append(out.t, dst.t...)
	out.f = append(out.f, dst.f...)
	return out, nil
}

// emitPorts 匹配 TCP/UDP 源或目的端口落在 [lo, hi] 的包。
func (e *emitter) emitPorts(lo, hi int) (block, error) {
	var out block

	// IPv6 分支：固定 40 字节头，端口紧随其后
	isV6 := e.etherType(etherTypeIPv6)
	_ = e.patchLocal(isV6.t)

	e.loadAbs(offIPv6Next, 1)
	tcp6 := e.jumpEq(protoTCP)
	udp6Chk := len(e.ins)
	udp6 := e.jumpEq(protoUDP)
	out.f = append(out.f, udp6.f...)
	_ = e.patch(tcp6.f, udp6Chk)
	_ = e.patchLocal(tcp6.t)
	_ = e.patchLocal(udp6.t)

	srcT, srcNext := e.portCmp(uint32(offIPv6Paylo), lo, hi)
	out.t = append(out.t, srcT...)
	_ = e.patchLocal(srcNext)
	dstT, dstF := e.portCmp(uint32(offIPv6Paylo+2), lo, hi)
	out.t = append(out.t, dstT...)
	out.f = append(out.f, dstF...)

	// IPv4 分支
	v4Chk := len(e.ins)
	_ = e.patch(isV6.f, v4Chk)
	e.loadAbs(offEtherType, 2)
	isV4 := e.jumpEq(etherTypeIPv4)
	out.f = append(out.f, isV4.f...)
	_ = e.patchLocal(isV4.t)

	e.loadAbs(offIPv4Proto, 1)
	tcp4 := e.jumpEq(protoTCP)
	udp4Chk := len(e.ins)
	udp4 := e.jumpEq(protoUDP)
	out.f = append(out.f, udp4.f...)
	_ = e.patch(tcp4.f, udp4Chk)
	_ = e.patchLocal(tcp4.t)
	_ = e.patchLocal(udp4.t)

	// 分片包（fragment offset 非零）不含传输层头，直接判不匹配
	e.loadAbs(offIPv4Frag, 2)
	fragIdx := len(e.ins)
	e.ins = append(e.ins, bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff})
	out.f = append(out.f, hole{idx: fragIdx, onTrue: true})

	// X <- IPv4 头长度，端口在 X+14 / X+16
	e.ins = append(e.ins, bpf.LoadMemShift{Off: offIPv4})
	srcT4, srcNext4 := e.portCmpInd(0, lo, hi)
	out.t = append(out.t, srcT4...)
	_ = e.patchLocal(srcNext4)
	dstT4, dstF4 := e.portCmpInd(2, lo, hi)
	out.t = append(out.t, dstT4...)
	out.f = append(out.f, dstF4...)

	return out, nil
}

// portCmp 在绝对偏移处比较 16 位端口与 [lo, hi]，返回真出口与“去比下一处”出口。
func (e *emitter) portCmp(off uint32, lo, hi int) (t, next []hole) {
	e.loadAbs(off, 2)
	return e.rangeCmp(lo, hi)
}

// portCmpInd 与 portCmp 相同，但偏移相对 X 寄存器（IPv4 变长头）。
func (e *emitter) portCmpInd(delta uint32, lo, hi int) (t, next []hole) {
	e.ins = append(e.ins, bpf.LoadIndirect{Off: offIPv4 + delta, Size: 2})
	return e.rangeCmp(lo, hi)
}

func (e *emitter) rangeCmp(lo, hi int) (t, next []hole) {
	if lo == hi {
		cmp := e.jumpEq(uint32(lo))
		return cmp.t, cmp.f
	}
	geIdx := len(e.ins)
	e.ins = append(e.ins, bpf.JumpIf{Cond: bpf.JumpGreaterOrEqual, Val: uint32(lo)})
	next = append(next, hole{idx: geIdx, onTrue: false})
	leIdx := len(e.ins)
	e.ins = append(e.ins, bpf.JumpIf{Cond: bpf.JumpLessOrEqual, Val: uint32(hi)})
	t = append(t, hole{idx: leIdx, onTrue: true})
	next = append(next, hole{idx: leIdx, onTrue: false})
	return t, next
}
