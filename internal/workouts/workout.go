package workouts

// SetRecord is one set of a strength exercise.
type SetRecord struct {
	WeightKg float64 `json:"weight_kg"`
	Reps     int     `json:"reps"`
}

type Cardio struct {
	Minutes    float64 `json:"minutes"`
	DistanceKm float64 `json:"distance_km"`
}

// WorkoutEntry is immutable once created, deleted by id.
// Date is a calendar date in ISO-8601 format, "YYYY-MM-DD".
type WorkoutEntry struct {
	ID       string      `json:"id"`
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Exercise string      `json:"exercise"`
	Type     string      `json:"type"`
	Sets     []SetRecord `json:"sets"`
	Cardio   *Cardio     `json:"cardio,omitempty"`
	Notes    *string     `json:"notes,omitempty"`
}

// Volume is the total weight lifted in the entry, Σ(weight × reps) over all sets.
func (w WorkoutEntry) Volume() float64 {
	var volume float64
	for _, s := range w.Sets {
		volume += s.WeightKg * float64(s.Reps)
	}
	return volume
}

// AppConfig holds client-facing workout configuration, seeded with
// defaults at startup when no config file is present yet.
type AppConfig struct {
	Categories []string            `json:"categories"`
	Exercises  map[string][]string `json:"exercises"`
	WeekStart  string              `json:"week_start"`
}

type DailySummary struct {
	SetsCount int     `json:"sets_count"`
	Volume    float64 `json:"volume"`
}
