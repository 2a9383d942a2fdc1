// Package engine 定义底层抓包引擎的契约。
//
// 引擎是外部协作者：它负责真正的抓包、过滤与注入，本包只规定调用约定。
// 契约中的裸指针语义（轮询缓冲区在下一次 Next 后失效、设备链表只遍历一次
// 并整体释放一次）由上层 capture/devices 包负责封装成安全接口。
package engine

import (
	"time"

	"golang.org/x/net/bpf"
)

// Option 句柄激活前可设置的选项。
type Option int

const (
	OptBufferSize Option = iota
	OptPromiscuous
	OptImmediate
	OptSnapLen
)

func (o Option) String() string {
	switch o {
	case OptBufferSize:
		return "buffer_size"
	case OptPromiscuous:
		return "promiscuous"
	case OptImmediate:
		return "immediate"
	case OptSnapLen:
		return "snap_len"
	default:
		return "unknown"
	}
}

// Stats 抓包计数快照。
type Stats struct {
	Received  uint32 // 收到的包数
	Dropped   uint32 // 因缓冲区满被丢弃的包数
	IfDropped uint32 // 被网卡或驱动丢弃的包数
}

// Capture 一次轮询的结果。
//
// Data 由引擎持有，只在下一次 Next 调用前有效；需要跨轮询保留时必须复制。
type Capture struct {
	Timestamp time.Time
	Data      []byte
}

// Handle 一个打开的抓包句柄。
//
// SetOption 只允许在 Activate 之前调用。Close 在引擎层不保证幂等，
// 调用方（capture.Handle）必须保证恰好释放一次。
type Handle interface {
	SetOption(opt Option, value int) error
	Activate() error
	CompileFilter(expr string) (Program, error)
	SetFilter(p Program) error
	// Next 阻塞等待下一个包。瞬时空轮询返回 ErrTimeout，
	// 干净的流结束返回 io.EOF。
	Next() (*Capture, error)
	Inject(buf []byte) (int, error)
	Stats() (Stats, error)
	// LastError 返回引擎最近一次错误的文本。取文本本身也可能失败，
	// 此时返回非 nil 的 error。
	LastError() (string, error)
	Close()
}

// Program 一段编译好的过滤程序，必须 Free 恰好一次。
type Program interface {
	Instructions() []bpf.RawInstruction
	Free()
}

// Opener 打开抓包源。
type Opener interface {
	Open(source string) (Handle, error)
}

// DeviceLister 枚举抓包设备。返回的链表遵守 DeviceNode 的遍历与释放约定。
type DeviceLister interface {
	ListDevices() (*DeviceNode, error)
	FreeDeviceList(head *DeviceNode)
}

// Engine 完整的引擎接口。
type Engine interface {
	Opener
	DeviceLister
}
