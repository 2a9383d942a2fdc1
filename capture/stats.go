package capture

// Stats 抓包统计，自抓包开始到调用时刻的计数快照。纯值，无资源归属。
type Stats struct {
	// Received 收到的包数。
	Received uint32
	// Dropped 因缓冲区满来不及读取而被丢弃的包数。
	Dropped uint32
	// IfDropped 被网卡或其驱动丢弃的包数。
	IfDropped uint32
}
