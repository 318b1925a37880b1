package requestserver

import "time"

// Per-method-family default timeouts, grounded on the same fast/slow
// split idiom the daemon's predecessor used for MCP tool calls: cheap
// metadata calls get a tight bound and transport-round-tripping calls get
// more room.
const (
	fastTimeout = 5 * time.Second
	slowTimeout = 15 * time.Second
)

var slowMethods = map[string]bool{
	"snapshot":   true,
	"act":        true,
	"pipe":       true,
	"screenshot": true,
}

// defaultTimeout returns the per-method default wall-clock budget (§5)
// when no explicit caller override applies.
func defaultTimeout(method string) time.Duration {
	if slowMethods[method] || len(method) >= 4 && method[:4] == "web." {
		return slowTimeout
	}
	return fastTimeout
}
