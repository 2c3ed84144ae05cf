package routines

// RoutineItem is one planned exercise in a routine.
// Reps stays a free-form string, clients send ranges like "8-12" or "30min".
type RoutineItem struct {
	Exercise string `json:"exercise"`
	Category string `json:"category"`
	Sets     int    `json:"sets"`
	Reps     string `json:"reps"`
}

type Routine struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Memo  *string       `json:"memo,omitempty"`
	Items []RoutineItem `json:"items"`
}
