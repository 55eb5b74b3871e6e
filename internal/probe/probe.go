// Package probe implements the on-demand network reachability check used
// by check_internet_connection. The target is fixed, not configurable —
// see the open question in spec.md §9, resolved by keeping observable
// behavior identical to the original's hard-coded dial target.
package probe

import (
	"context"
	"net"
	"time"
)

const (
	target  = "8.8.8.8:53"
	timeout = 2 * time.Second
)

// Reachable dials target with a bounded timeout and reports success.
// It never blocks longer than timeout even if ctx has no deadline of its
// own, matching the ~2s bound in §4.6.
func Reachable(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", target)
	if err != nil {
		return false
	}
	defer conn.Close()
	return true
}
