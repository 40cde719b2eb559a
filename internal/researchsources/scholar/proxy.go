package scholar

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// Proxy status messages shown to the user.
const (
	StatusDirect         = "No proxies (direct mode)."
	StatusProxiesEnabled = "Proxies enabled (%d available)."
	StatusNoProxies      = "Failed to obtain proxies."
)

// ProxyPool rotates round-robin over a fixed set of proxy URLs.
// It is safe for concurrent use.
type ProxyPool struct {
	proxies []*url.URL
	next    atomic.Uint64
}

// NewProxyPool parses the given proxy URLs. Blank entries are skipped;
// an unparseable entry is an error.
func NewProxyPool(rawURLs []string) (*ProxyPool, error) {
	pool := &ProxyPool{}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid proxy URL %q", domain.ErrInvalidInput, raw)
		}
		pool.proxies = append(pool.proxies, u)
	}
	return pool, nil
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the next proxy, or nil when the pool is empty.
func (p *ProxyPool) Next() *url.URL {
	if p.Len() == 0 {
		return nil
	}
	i := p.next.Add(1) - 1
	return p.proxies[i%uint64(len(p.proxies))]
}

// Status describes what enabling the pool would do.
func (p *ProxyPool) Status(enabled bool) ProxyStatus {
	if !enabled {
		return ProxyStatus{OK: true, Message: StatusDirect}
	}
	if p.Len() == 0 {
		return ProxyStatus{OK: false, Message: StatusNoProxies}
	}
	return ProxyStatus{OK: true, Enabled: true, Message: fmt.Sprintf(StatusProxiesEnabled, p.Len())}
}
