package scraper

import (
	"sync"

	"github.com/FranksOps/listcrawl/internal/listing"
)

// frontier is the unbounded FIFO of requests waiting for a worker. push
// never blocks, so a worker can enqueue the links it found while the other
// workers are busy.
type frontier struct {
	mu    sync.Mutex
	items []listing.FetchRequest
	// ready holds a token while items may be non-empty.
	ready chan struct{}
}

func newFrontier() *frontier {
	return &frontier{ready: make(chan struct{}, 1)}
}

func (f *frontier) push(req listing.FetchRequest) {
	f.mu.Lock()
	f.items = append(f.items, req)
	f.mu.Unlock()
	f.signal()
}

func (f *frontier) pop() (listing.FetchRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return listing.FetchRequest{}, false
	}
	req := f.items[0]
	f.items[0] = listing.FetchRequest{}
	f.items = f.items[1:]
	if len(f.items) > 0 {
		// Wake the next idle worker.
		f.signal()
	}
	return req, true
}

func (f *frontier) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}
