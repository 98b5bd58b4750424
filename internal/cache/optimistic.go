package cache

import "context"

// mutation is the shared shape of an optimistic write. capture and apply run
// under the cache lock before the backend call; capture must return
// everything rollback needs to restore the pre-mutation state exactly.
// rollback runs under the lock again only when commit fails.
type mutation[S any] struct {
	capture  func() S
	apply    func()
	commit   func(context.Context) error
	rollback func(S)
}

// runOptimistic applies the local change immediately, then settles it
// against the backend. On commit failure every optimistic effect is undone
// from the captured snapshot; nothing of the failed write remains visible.
func runOptimistic[S any](ctx context.Context, c *Cache, m mutation[S]) error {
	c.mu.Lock()
	snapshot := m.capture()
	m.apply()
	c.seq++
	c.mu.Unlock()

	if err := m.commit(ctx); err != nil {
		c.mu.Lock()
		m.rollback(snapshot)
		c.seq++
		c.mu.Unlock()
		return err
	}
	return nil
}
