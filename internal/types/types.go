package types

// Record represents a single parsed log line.
type Record struct {
	Timestamp string // "<date> <time>"
	Level     string
	Service   string
	Message   string
}

// String renders the record as "[timestamp] level service message".
func (r Record) String() string {
	return "[" + r.Timestamp + "] " + r.Level + " " + r.Service + " " + r.Message
}
