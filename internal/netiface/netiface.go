// Package netiface reports the presence of usable OS network interfaces and
// watches them for changes. Loopback, downed and address-less interfaces do
// not count as usable.
package netiface

import (
	"net"
	"sort"
	"strings"
)

// Interface summarises one usable OS network interface.
type Interface struct {
	Name  string   `json:"name"`
	Addrs []string `json:"addrs"`
}

// Query returns the currently usable interfaces. An error means the OS query
// itself failed; an empty slice means no interface is usable.
type Query func() ([]Interface, error)

// System queries the host's interfaces via the net package.
func System() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []Interface
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		var usable []string
		for _, addr := range addrs {
			ip := extractIP(addr)
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
			usable = append(usable, ip.String())
		}
		if len(usable) == 0 {
			continue
		}
		sort.Strings(usable)
		out = append(out, Interface{Name: ifc.Name, Addrs: usable})
	}
	return out, nil
}

func extractIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

// Fingerprint reduces an interface set to a comparable string so the watcher
// can detect changes without deep comparison.
func Fingerprint(ifaces []Interface) string {
	if len(ifaces) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ifaces))
	for _, ifc := range ifaces {
		parts = append(parts, ifc.Name+"|"+strings.Join(ifc.Addrs, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
