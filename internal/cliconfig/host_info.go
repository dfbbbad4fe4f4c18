package cliconfig

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// HostInfo describes the machine the agent runs on. It feeds the send
// metadata headers and the startup log.
type HostInfo struct {
	Hostname  string
	OSRelease string
	OSArch    string
}

// ReadHostInfo collects host facts. Lookup failures degrade to coarser
// values rather than preventing agent startup.
func ReadHostInfo() HostInfo {
	hi := HostInfo{OSArch: runtime.GOOS + "/" + runtime.GOARCH}

	info, err := host.Info()
	if err != nil {
		if hn, herr := os.Hostname(); herr == nil {
			hi.Hostname = hn
		}
		hi.OSRelease = runtime.GOOS
		return hi
	}

	hi.Hostname = info.Hostname
	hi.OSRelease = info.Platform
	if info.PlatformVersion != "" {
		hi.OSRelease = info.Platform + "-" + info.PlatformVersion
	}
	if hi.OSRelease == "" {
		hi.OSRelease = info.OS
	}
	return hi
}
