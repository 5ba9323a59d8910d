package db

// TopQueryLatencies returns the slowest named queries by p95, at most limit
// entries. Sample windows are bounded, so the numbers describe recent
// traffic only.
func (c *Database) TopQueryLatencies(limit int) []queryLatencyStats {
	if c == nil || c.tracker == nil || limit <= 0 {
		return nil
	}
	stats := c.tracker.snapshot()
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
