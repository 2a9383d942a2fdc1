// Package enginetest 提供测试用的假引擎。
//
// FakeHandle 按脚本逐条产出轮询结果，并像真实引擎一样复用读缓冲区：
// 每次 Next 都会覆盖上一次返回的 Data，用来验证上层的借用失效语义。
package enginetest

import (
	"errors"
	"io"
	"time"

	"golang.org/x/net/bpf"

	"github.com/norpex/livecap/engine"
)

// Step 脚本中的一步。Err 非空时该步只返回错误。
type Step struct {
	Data []byte
	Ts   time.Time
	Err  error
}

// Fake 实现 engine.Engine，Open 返回预先放入的句柄或按需新建。
type Fake struct {
	// OpenErr 非空时 Open 直接失败。
	OpenErr error
	// NextHandle 非空时 Open 返回它（并清空），否则新建空句柄。
	NextHandle *FakeHandle

	// Opened 按顺序记录每次 Open 返回的句柄。
	Opened []*FakeHandle

	// Devices 设备枚举的固定结果，ListDevices 每次都重建链表。
	Devices []Device
	ListErr error
	// FreedLists 记录 FreeDeviceList 被调用的次数。
	FreedLists int
}

// Device 设备夹具，ListDevices 时展开为链表节点。
type Device struct {
	Name        string
	Description string
	Flags       uint32
	Addrs       []engine.AddrNode
}

func (f *Fake) Open(source string) (engine.Handle, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	h := f.NextHandle
	f.NextHandle = nil
	if h == nil {
		h = &FakeHandle{}
	}
	h.Source = source
	f.Opened = append(f.Opened, h)
	return h, nil
}

func (f *Fake) ListDevices() (*engine.DeviceNode, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return Chain(f.Devices), nil
}

func (f *Fake) FreeDeviceList(head *engine.DeviceNode) {
	f.FreedLists++
}

// Chain 把设备夹具串成引擎约定的链表。
func Chain(devs []Device) *engine.DeviceNode {
	var head, tail *engine.DeviceNode
	for _, d := range devs {
		node := &engine.DeviceNode{
			Name:        d.Name,
			Description: d.Description,
			Flags:       d.Flags,
		}
		var atail *engine.AddrNode
		for i := range d.Addrs {
			an := d.Addrs[i]
			an.Next = nil
			if atail == nil {
				node.Addrs = &an
			} else {
				atail.Next = &an
			}
			atail = &an
		}
		if tail == nil {
			head = node
		} else {
			tail.Next = node
		}
		tail = node
	}
	return head
}

// FakeHandle 脚本驱动的抓包句柄。
type FakeHandle struct {
	Source string

	// Script 轮询脚本。走完之后 Next 返回 io.EOF。
	Script []Step
	pos    int
	buf    []byte

	Options   map[engine.Option]int
	OptionErr error

	Activated   bool
	ActivateErr error

	CompileErr error
	FilterErr  error
	// Compiled 记录编译过的表达式，Installed 记录装上的程序。
	Compiled  []*FakeProgram
	Installed []engine.Program

	Injected [][]byte
	InjectN  int
	InjErr   error

	StatsVal engine.Stats
	StatsErr error

	LastText string
	LastErr  error

	// Closed 记录 Close 被调用的次数。引擎层不保证幂等，
	// 上层必须让它恰好为 1。
	Closed int
}

var errNotActivated = errors.New("enginetest: handle not activated")

func (h *FakeHandle) SetOption(opt engine.Option, value int) error {
	if h.OptionErr != nil {
		return h.OptionErr
	}
	if h.Activated {
		return engine.ErrActivated
	}
	if h.Options == nil {
		h.Options = make(map[engine.Option]int)
	}
	h.Options[opt] = value
	return nil
}

func (h *FakeHandle) Activate() error {
	if h.ActivateErr != nil {
		return h.ActivateErr
	}
	if h.Activated {
		return engine.ErrActivated
	}
	h.Activated = true
	return nil
}

func (h *FakeHandle) CompileFilter(expr string) (engine.Program, error) {
	if h.CompileErr != nil {
		return nil, h.CompileErr
	}
	p := &FakeProgram{Expr: expr}
	h.Compiled = append(h.Compiled, p)
	return p, nil
}

func (h *FakeHandle) SetFilter(p engine.Program) error {
	if h.FilterErr != nil {
		return h.FilterErr
	}
	h.Installed = append(h.Installed, p)
	return nil
}

// Next 执行脚本的下一步。返回的 Data 指向内部复用缓冲区，
// 与真实引擎一样会被后续轮询覆盖。
func (h *FakeHandle) Next() (*engine.Capture, error) {
	if !h.Activated {
		return nil, errNotActivated
	}
	if h.pos >= len(h.Script) {
		return nil, io.EOF
	}
	step := h.Script[h.pos]
	h.pos++
	if step.Err != nil {
		return nil, step.Err
	}
	if cap(h.buf) < len(step.Data) {
		h.buf = make([]byte, len(step.Data))
	}
	h.buf = h.buf[:len(step.Data)]
	copy(h.buf, step.Data)
	return &engine.Capture{Timestamp: step.Ts, Data: h.buf}, nil
}

func (h *FakeHandle) Inject(buf []byte) (int, error) {
	if h.InjErr != nil {
		return 0, h.InjErr
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	h.Injected = append(h.Injected, cp)
	if h.InjectN > 0 {
		return h.InjectN, nil
	}
	return len(buf), nil
}

func (h *FakeHandle) Stats() (engine.Stats, error) {
	if h.StatsErr != nil {
		return engine.Stats{}, h.StatsErr
	}
	return h.StatsVal, nil
}

func (h *FakeHandle) LastError() (string, error) {
	return h.LastText, h.LastErr
}

func (h *FakeHandle) Close() {
	h.Closed++
}

// FakeProgram 记录释放次数的假过滤程序。
type FakeProgram struct {
	Expr  string
	Freed int
}

func (p *FakeProgram) Instructions() []bpf.RawInstruction {
	// 单条 ret 指令，足够让装载方有东西可传
	return []bpf.RawInstruction{{Op: 0x06, K: 0x40000}}
}

func (p *FakeProgram) Free() {
	p.Freed++
}
