package instance

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	fallbackOnce sync.Once
	fallback     string
)

// ID names this process in logs and lock ownership. An explicit id wins;
// otherwise the host name is used, and a random suffix when even that is
// unavailable. The result is prefixed with the service kind.
func ID(kind, configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "emlak"
	}
	return kind + "-" + hostname()
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h)
	}
	fallbackOnce.Do(func() {
		fallback = uuid.NewString()[:8]
	})
	return fallback
}
