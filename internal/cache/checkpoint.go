package cache

import (
	"log/slog"
	"sync"

	"github.com/nao1215/pagewalk/internal/model"
)

// StateFunc returns the current result set and the URLs scheduled but not
// yet recorded. Both must come from the same instant.
type StateFunc func() (*model.ResultSet, []string)

// Checkpointer saves intermediate results every N new records so that a
// crashed crawl loses little work. Pending URLs go to the store's sidecar,
// which is what makes the crawl resumable. It is safe for concurrent use.
type Checkpointer struct {
	store  *Store
	state  StateFunc
	every  int
	logger *slog.Logger

	mu      sync.Mutex
	pending int
	saves   int
}

// NewCheckpointer creates a Checkpointer. every <= 0 disables checkpoints.
func NewCheckpointer(store *Store, state StateFunc, every int, logger *slog.Logger) *Checkpointer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpointer{store: store, state: state, every: every, logger: logger}
}

// Observe counts one new record and saves when the threshold is reached.
// Checkpoint failures are logged, not returned: the final save reports
// persistence errors.
func (c *Checkpointer) Observe() {
	if c.every <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending++
	if c.pending < c.every {
		return
	}
	c.pending = 0

	results, urls := c.state()
	if err := c.store.Save(results); err != nil {
		c.logger.Warn("checkpoint failed", "path", c.store.Path(), "error", err)
		return
	}
	if err := c.store.SavePending(urls); err != nil {
		c.logger.Warn("checkpoint failed", "path", c.store.PendingPath(), "error", err)
		return
	}
	c.saves++
	c.logger.Debug("checkpoint saved", "path", c.store.Path(), "pending", len(urls))
}

// Saves returns the number of successful checkpoints.
func (c *Checkpointer) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}
