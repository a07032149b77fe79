package crawler

import "sync"

// frontier is the shared work stack. pop blocks while the stack is empty
// but some worker is still processing an item that may push more work.
type frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	active int
	closed bool
}

func newFrontier() *frontier {
	f := &frontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push adds urls so that urls[0] is popped first.
func (f *frontier) push(urls ...string) {
	if len(urls) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for i := len(urls) - 1; i >= 0; i-- {
		f.items = append(f.items, urls[i])
	}
	f.cond.Broadcast()
}

// pop returns the next URL. ok is false once the frontier is closed or
// drained with no worker active. Every successful pop must be paired with
// a call to done.
func (f *frontier) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) == 0 && f.active > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.items) == 0 {
		return "", false
	}
	last := len(f.items) - 1
	u := f.items[last]
	f.items = f.items[:last]
	f.active++
	return u, true
}

func (f *frontier) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	if f.active == 0 && len(f.items) == 0 {
		f.cond.Broadcast()
	}
}

// close stops the frontier: pending items are dropped and waiting workers
// return.
func (f *frontier) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.items = nil
	f.cond.Broadcast()
}
