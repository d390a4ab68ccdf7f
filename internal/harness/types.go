package harness

// Trace event types.
const (
	EventMove     = "move"
	EventPriority = "priority"
	EventStatus   = "status"
)

// TraceEvent is one change a scenario run produced.
type TraceEvent struct {
	Type    string `json:"type"` // "move", "priority" or "status"
	Seq     int    `json:"seq"`
	Key     string `json:"key"`
	After   string `json:"after,omitempty"` // Moves only
	From    string `json:"from,omitempty"`  // Updates only
	To      string `json:"to,omitempty"`    // Updates only
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Order is the final item order. Rules that do not rank leave the
	// input order.
	Order []string `json:"order"`

	// Trace contains every move and update in the order it was produced.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ErrorCode is the runtime error code when the run failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Priorities and Statuses hold the final priority and status category
	// display names of every item and ancestor.
	Priorities map[string]string `json:"priorities,omitempty"`
	Statuses   map[string]string `json:"statuses,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Order:      []string{},
		Trace:      []TraceEvent{},
		Errors:     []string{},
		Priorities: make(map[string]string),
		Statuses:   make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddMoveTrace records an applied move.
func (r *Result) AddMoveTrace(key, after, message string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventMove,
		Seq:     len(r.Trace) + 1,
		Key:     key,
		After:   after,
		Message: message,
	})
}

// AddUpdateTrace records a priority or status update.
func (r *Result) AddUpdateTrace(typ, key, from, to, message string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    typ,
		Seq:     len(r.Trace) + 1,
		Key:     key,
		From:    from,
		To:      to,
		Message: message,
	})
}

// Moves returns the applied moves rendered "X after Y".
func (r *Result) Moves() []string {
	moves := []string{}
	for _, e := range r.Trace {
		if e.Type == EventMove {
			moves = append(moves, e.Key+" after "+e.After)
		}
	}
	return moves
}
