package cache

import "time"

// PruneIdle evicts models that have not been used for longer than maxIdle.
// It returns the number of models evicted.
func (c *ModelCache) PruneIdle(maxIdle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxIdle)
	pruned := 0

	// Start from the back (least recently used)
	elem := c.eviction.Back()
	for elem != nil {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if !e.info.LastAccess.Before(cutoff) {
			break
		}
		c.removeElement(elem)
		c.stats.Evictions++
		pruned++
		elem = prev
	}

	if pruned > 0 {
		c.logger.Debug("Pruned idle voice models", "count", pruned, "maxIdle", maxIdle)
	}
	return pruned
}

// janitor is one running prune loop.
type janitor struct {
	stop chan struct{}
	done chan struct{}
}

// halt stops the loop and waits for it to exit.
func (j *janitor) halt() {
	if j == nil {
		return
	}
	close(j.stop)
	<-j.done
}

// StartJanitor prunes idle models every interval until Close. Calling it
// again replaces the running janitor; a non-positive interval or maxIdle
// only stops it.
func (c *ModelCache) StartJanitor(interval, maxIdle time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.janitor
	c.janitor = nil
	if interval > 0 && maxIdle > 0 {
		c.janitor = c.runJanitor(interval, maxIdle)
	}
	c.mu.Unlock()

	// Whoever swaps a janitor out owns stopping it.
	old.halt()
}

// runJanitor starts a prune loop (must be called with lock held).
func (c *ModelCache) runJanitor(interval, maxIdle time.Duration) *janitor {
	j := &janitor{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(j.done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.PruneIdle(maxIdle)
			case <-j.stop:
				return
			}
		}
	}()
	return j
}
