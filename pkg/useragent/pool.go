// Package useragent rotates User-Agent headers across requests.
package useragent

import (
	"math/rand/v2"
	"sync/atomic"
)

// DefaultPool holds current desktop browser User-Agents.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Pool hands out User-Agents round-robin or at random.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool copies uas into a pool. An empty list falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	return &Pool{uas: append([]string(nil), uas...)}
}

// Fixed returns a pool that always yields ua, or DefaultPool when ua is empty.
func Fixed(ua string) *Pool {
	if ua == "" {
		return NewPool(nil)
	}
	return NewPool([]string{ua})
}

// Next returns User-Agents in round-robin order.
func (p *Pool) Next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen User-Agent.
func (p *Pool) Random() string {
	return p.uas[rand.IntN(len(p.uas))]
}

// Len is the number of User-Agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
