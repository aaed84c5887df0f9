package bus

import "sync/atomic"

type counters struct {
	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

func (c *counters) snapshot() map[string]uint64 {
	return map[string]uint64{
		"published": c.published.Load(),
		"delivered": c.delivered.Load(),
		"dropped":   c.dropped.Load(),
		"errors":    c.errors.Load(),
	}
}
