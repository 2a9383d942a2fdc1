package capture

// Session 已激活的抓包句柄。
//
// 只有 Session 暴露过滤、抓包、注入与统计操作，激活前这些调用在类型上
// 就不可表达。Session 与其派生的 Iterator、borrowed Packet 都限定在
// 单个持有者内使用，不能跨 goroutine 共享：下一次轮询会改写引擎缓冲区。
type Session struct {
	h *Handle

	// 轮询代数。每次向引擎发起 Next 前递增，使上一个 borrowed 包失效。
	gen uint64
}

// SetFilter 编译并安装过滤表达式，编译出的程序随即释放。
// 重复调用会替换当前生效的过滤器。
func (s *Session) SetFilter(expr string) error {
	f, err := s.Compile(expr)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Install(f)
}

// Compile 把过滤表达式编译为绑定在本句柄上的过滤程序。
// 返回的 Filter 必须由调用方 Close。
func (s *Session) Compile(expr string) (*Filter, error) {
	prog, err := s.h.eng.CompileFilter(expr)
	if err != nil {
		return nil, engineErr("compile_filter", err)
	}
	return &Filter{prog: prog, expr: expr}, nil
}

// Install 安装已编译的过滤程序，可重复安装（替换语义）。
func (s *Session) Install(f *Filter) error {
	if f == nil || f.closed {
		return ErrFilterClosed
	}
	if err := s.h.eng.SetFilter(f.prog); err != nil {
		return engineErr("set_filter", err)
	}
	return nil
}

// Capture 返回包迭代器。迭代器惰性、不可重启，每步恰好轮询引擎一次。
func (s *Session) Capture() *Iterator {
	return &Iterator{s: s}
}

// Inject 向网络发送一个包，返回写入的字节数。
func (s *Session) Inject(buf []byte) (int, error) {
	n, err := s.h.eng.Inject(buf)
	if err != nil {
		return 0, engineErr("inject", err)
	}
	return n, nil
}

// Stats 返回自抓包开始以来的计数快照。
func (s *Session) Stats() (Stats, error) {
	st, err := s.h.eng.Stats()
	if err != nil {
		return Stats{}, engineErr("stats", err)
	}
	return Stats{
		Received:  st.Received,
		Dropped:   st.Dropped,
		IfDropped: st.IfDropped,
	}, nil
}

// LastError 见 Handle.LastError。
func (s *Session) LastError() (string, error) {
	return s.h.LastError()
}

// Source 返回打开时指定的抓包源。
func (s *Session) Source() string { return s.h.Source() }

// Close 结束会话并释放句柄，恰好一次。
// 不能与仍在阻塞中的轮询并发调用。
func (s *Session) Close() {
	s.gen++ // 现存的 borrowed 包全部失效
	s.h.Close()
}
