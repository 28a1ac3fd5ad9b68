package rating

// EngineConfig is a read-only snapshot of the scoring constants, for
// the configuration endpoint.
type EngineConfig struct {
	Weights              Weights          `json:"weights"`
	PriorityScores       map[Priority]int `json:"priority_scores"`
	CodeAmountThresholds map[string]int   `json:"code_amount_thresholds"`
	TimeFactorScores     map[string]int   `json:"time_factor_scores"`
	LevelThresholds      map[Level]int    `json:"level_thresholds"`
}

// Config reports the weights in use alongside the fixed scoring tables.
func (c *Calculator) Config() EngineConfig {
	priorities := make(map[Priority]int, len(priorityScores))
	for p, score := range priorityScores {
		priorities[p] = score
	}

	return EngineConfig{
		Weights:        c.Weights(),
		PriorityScores: priorities,
		CodeAmountThresholds: map[string]int{
			"small":  50,
			"medium": 200,
			"large":  500,
		},
		TimeFactorScores: map[string]int{
			"on_time":         timeOnTime,
			"early":           timeEarly,
			"slightly_late":   timeSlightlyLate,
			"moderately_late": timeModeratelyLate,
			"very_late":       timeVeryLate,
			"no_deadline":     timeNoDeadline,
		},
		LevelThresholds: map[Level]int{
			LevelExcellent:    90,
			LevelVeryGood:     80,
			LevelGood:         70,
			LevelSatisfactory: 60,
			LevelAverage:      50,
			LevelBelowAverage: 40,
		},
	}
}
