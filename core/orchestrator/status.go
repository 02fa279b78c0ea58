package orchestrator

// StageStatus is a point-in-time snapshot of one pipeline stage: pool
// activity plus the state of any circuit breaker gating the stage's
// dependencies.
type StageStatus struct {
	Active    int64             `json:"active"`
	Completed int64             `json:"completed"`
	Failed    int64             `json:"failed"`
	Limit     int               `json:"limit"`
	Circuits  map[string]string `json:"circuits,omitempty"`
}

// Status reports a snapshot of every stage pool. Counters are sampled
// per-pool, so the snapshot is consistent within a stage but not across
// stages.
func (c *Coordinator) Status() map[string]StageStatus {
	status := make(map[string]StageStatus, len(c.pools))
	for name, p := range c.pools {
		stats := p.Stats()
		s := StageStatus{
			Active:    stats.Active,
			Completed: stats.Completed,
			Failed:    stats.Failed,
			Limit:     stats.Limit,
		}
		if name == StageExtract {
			s.Circuits = c.circuitStates()
		}
		status[name] = s
	}
	return status
}

func (c *Coordinator) circuitStates() map[string]string {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	if len(c.breakers) == 0 {
		return nil
	}
	states := make(map[string]string, len(c.breakers))
	for group, breaker := range c.breakers {
		states[group] = breaker.State().String()
	}
	return states
}
