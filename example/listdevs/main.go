// 枚举本机抓包设备并打印名字、标志与地址。
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/norpex/livecap/devices"
	"github.com/norpex/livecap/engine"
	"github.com/norpex/livecap/engine/afpacket"
	"github.com/norpex/livecap/engine/pcaplive"
)

func main() {
	engineName := flag.String("engine", "afpacket", "capture engine: afpacket or pcap")
	flag.Parse()

	var lister engine.DeviceLister
	switch *engineName {
	case "afpacket":
		lister = afpacket.New()
	case "pcap":
		lister = pcaplive.New()
	default:
		fmt.Fprintf(os.Stderr, "unknown engine %q\n", *engineName)
		os.Exit(2)
	}

	list, err := devices.List(lister)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer list.Close()

	for _, ifc := range list.Interfaces() {
		fmt.Printf("%s [%s]\n", ifc.Name, ifc.Flags)
		if ifc.Description != "" {
			fmt.Printf("    %s\n", ifc.Description)
		}
		for _, ia := range ifc.Addresses {
			fmt.Printf("    %s", ia.Addr)
			if ia.Netmask != nil {
				fmt.Printf(" mask %s", *ia.Netmask)
			}
			fmt.Println()
		}
	}
	if n := list.Skipped(); n > 0 {
		fmt.Printf("(%d address records of unknown family skipped)\n", n)
	}
}
