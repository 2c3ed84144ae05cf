package coach

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type WeekVolume struct {
	Week   string  `json:"week"`
	Volume float64 `json:"volume"`
}

type WeekFrequency struct {
	Week string `json:"week"`
	Days int    `json:"days"`
}

// TrendEntry is the estimated 1RM progression for one exercise,
// first and last observed estimates and the percent change between them.
type TrendEntry struct {
	Exercise  string  `json:"exercise"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	ChangePct float64 `json:"changePct"`
}

type Metrics struct {
	WeeklyVolume    []WeekVolume    `json:"weeklyVolume"`
	WeeklyFrequency []WeekFrequency `json:"weeklyFrequency"`
	PRTrend         []TrendEntry    `json:"prTrend"`
}

type Recommendation struct {
	Title    string `json:"title"`
	Reason   string `json:"reason"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// Result is recomputed per request and optionally served from a short TTL cache.
type Result struct {
	InsufficientData bool             `json:"insufficientData"`
	Metrics          Metrics          `json:"metrics"`
	Recommendations  []Recommendation `json:"recommendations"`
}
