package pingutil

import (
	probing "github.com/prometheus-community/pro-bing"
	"k8s.io/klog/v2"
	"time"
)

// Reachable sends a single ICMP echo request to host and reports whether a
// reply arrived within timeout. A host that cannot be resolved is unreachable.
func Reachable(host string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		klog.V(3).InfoS("Failed to resolve probe target", "host", host, "err", err)
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		klog.V(3).InfoS("Failed to probe host", "host", host, "err", err)
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
