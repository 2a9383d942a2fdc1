package capture

import "time"

// Packet 一次抓包结果，分为两种形态：
//
//   - borrowed：对引擎缓冲区的零拷贝视图，只在同一会话的下一次轮询前有效。
//     失效后 Bytes 返回 nil，ToOwned 返回 ErrPacketInvalidated。
//   - owned：显式复制出的字节，永久有效，与会话无关。
//
// 需要跨轮询保留包数据时，ToOwned 是唯一安全的方式。
type Packet struct {
	data  []byte
	ts    time.Time
	owned bool

	// borrowed 形态的有效性凭据
	s   *Session
	gen uint64
}

// OwnedPacket 由调用方提供的字节构造一个 owned 包。字节不复制。
func OwnedPacket(data []byte, ts time.Time) *Packet {
	return &Packet{data: data, ts: ts, owned: true}
}

// Borrowed 报告包是否仍是零拷贝视图。
func (p *Packet) Borrowed() bool { return !p.owned }

// Valid 报告包数据当前是否可读。owned 包永远有效。
func (p *Packet) Valid() bool {
	return p.owned || (p.s != nil && p.gen == p.s.gen)
}

// Timestamp 返回引擎记录的抓包时间。
func (p *Packet) Timestamp() time.Time { return p.ts }

// Bytes 返回包数据。borrowed 包失效后返回 nil。
// 返回的切片不得跨轮询保留，需要保留请先 ToOwned。
func (p *Packet) Bytes() []byte {
	if !p.Valid() {
		return nil
	}
	return p.data
}

// Len 返回包长度，失效的 borrowed 包长度为 0。
func (p *Packet) Len() int { return len(p.Bytes()) }

// Copy 返回包数据的独立副本。失效时返回 nil。
func (p *Packet) Copy() []byte {
	b := p.Bytes()
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ToOwned 把包转为 owned 形态。对已 owned 的包原样返回；
// 对失效的 borrowed 包返回 ErrPacketInvalidated。
func (p *Packet) ToOwned() (*Packet, error) {
	if p.owned {
		return p, nil
	}
	if !p.Valid() {
		return nil, ErrPacketInvalidated
	}
	return &Packet{data: p.Copy(), ts: p.ts, owned: true}, nil
}
