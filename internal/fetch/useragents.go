package fetch

import "sync/atomic"

// userAgents is a small rotating pool of realistic desktop browser UAs
// rather than a generator, the same static-pool approach most crawlers
// take since a handful of common UA strings blend in better than a
// synthetic one.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

type userAgentRotator struct {
	next uint32
}

func (r *userAgentRotator) pick() string {
	i := atomic.AddUint32(&r.next, 1)
	return userAgents[int(i)%len(userAgents)]
}
