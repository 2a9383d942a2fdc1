// Package capture 在原始抓包引擎之上提供安全、符合习惯的句柄抽象。
//
// 生命周期：Open 得到 Builder，配置后 Activate 得到 Session，
// 之后才能设置过滤器、迭代抓包、注入与取统计：
//
//	b, err := capture.Open(eng, "eth0")
//	if err != nil { ... }
//	sess, err := b.SnapLen(65535).Immediate(true).Activate()
//	if err != nil { ... }
//	defer sess.Close()
//
//	if err := sess.SetFilter("tcp and port 80"); err != nil { ... }
//	it := sess.Capture()
//	for it.Next() {
//	    pkt, err := it.Packet().ToOwned()
//	    ...
//	}
//
// 本包只负责安全封装：真正的抓包、过滤、注入都由 engine 契约背后的
// 外部引擎完成。所有类型都限定单个持有者使用，不支持跨 goroutine 共享。
package capture
