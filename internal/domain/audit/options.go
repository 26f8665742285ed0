package audit

// ListOptions filters audit queries.
type ListOptions struct {
	Department string
	EventType  *EventType
	Limit      int
	Offset     int
}
