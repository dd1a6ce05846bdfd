package anneal

// State is the phase of the annealing schedule.
type State int

const (
	// Active means the schedule is still cooling and accepting uphill moves.
	Active State = iota
	// Frozen is terminal.
	Frozen
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Frozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// FreezeWindow parameterizes the freeze test over the per-round HPWL history.
type FreezeWindow struct {
	// Lag selects the reference sample: the entry Lag positions from the end,
	// so Lag 4 compares history[len-4] with history[len-1].
	Lag int
	// MinHistory is the number of samples required before the test applies.
	MinHistory int
}

// DefaultFreezeWindow compares the fourth-last sample with the last once at
// least ten samples exist.
func DefaultFreezeWindow() FreezeWindow {
	return FreezeWindow{Lag: DefaultFreezeLag, MinHistory: DefaultFreezeMinHistory}
}

// Frozen reports whether the history has regressed over the window: it
// holds at least w.MinHistory samples and the reference sample is strictly
// lower than the latest one. A flat history never freezes.
func (w FreezeWindow) Frozen(history []float64) bool {
	n := len(history)
	if n < w.MinHistory || n < w.Lag || w.Lag < 1 {
		return false
	}
	return history[n-w.Lag] < history[n-1]
}
