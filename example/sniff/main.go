// 按配置抓包并打印每个包的时间戳与长度，抓满 count 个后输出统计。
//
// 配置来自 livecap.yaml 与 LIVECAP_* 环境变量，见 conf 包。
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/norpex/livecap/capture"
	"github.com/norpex/livecap/conf"
	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/engine/afpacket"
	"github.com/norpex/livecap/engine/pcaplive"
	"github.com/norpex/livecap/logx"
)

func main() {
	cfgFile := flag.String("config", "", "config file path (default: search livecap.yaml)")
	count := flag.Int("count", 0, "stop after this many packets (0 = run until interrupted)")
	flag.Parse()

	var opts []conf.Option
	if *cfgFile != "" {
		opts = append(opts, conf.WithFile(*cfgFile))
	}
	cfg, err := conf.New(opts...).Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logx.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logx.SetDefault(logger)
	defer logger.Sync()

	var opener engine.Opener
	switch cfg.Engine {
	case "afpacket":
		opener = afpacket.New()
	case "pcap":
		opener = pcaplive.New()
	}

	session, err := openSession(opener, cfg)
	if err != nil {
		logx.Errorf("open session: %v", err)
		os.Exit(1)
	}
	defer session.Close()

	seen := 0
	it := session.Capture()
	for it.Next() {
		pkt := it.Packet()
		fmt.Printf("%s  %4d bytes\n", pkt.Timestamp().Format("15:04:05.000000"), pkt.Len())
		seen++
		if *count > 0 && seen >= *count {
			break
		}
	}
	if err := it.Err(); err != nil {
		logx.Errorf("capture: %v", err)
	}

	if stats, err := session.Stats(); err == nil {
		fmt.Printf("\n%d packets received, %d dropped, %d dropped by interface\n",
			stats.Received, stats.Dropped, stats.IfDropped)
	}
}

func openSession(opener engine.Opener, cfg conf.Config) (*capture.Session, error) {
	b, err := capture.Open(opener, cfg.Source)
	if err != nil {
		return nil, err
	}
	b = b.SnapLen(cfg.SnapLen).
		Promiscuous(cfg.Promiscuous).
		Immediate(cfg.Immediate)
	if cfg.BufferSize > 0 {
		b = b.BufferSize(cfg.BufferSize)
	}
	session, err := b.Activate()
	if err != nil {
		return nil, err
	}
	if cfg.Filter != "" {
		if err := session.SetFilter(cfg.Filter); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}
