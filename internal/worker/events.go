package worker

// ProgressEvent is emitted after every counter flush. Delivery is
// best-effort; the Job Store remains the canonical state (§4.7).
type ProgressEvent struct {
	JobID      string  `json:"job_id"`
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Pct        float64 `json:"pct"`
}

// TerminalEvent is emitted once a job reaches completed or failed, the
// same event the Notifier (C10) subscribes to.
type TerminalEvent struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
}

// EventSink receives progress and terminal notifications from the worker.
// The Notifier (C10) implements this and is the only sink cmd/server wires;
// the worker holds a slice of sinks and never blocks on slow subscribers
// (each call runs synchronously but a sink is expected to be non-blocking
// itself, e.g. a buffered channel send or fire-and-forget goroutine).
type EventSink interface {
	OnProgress(ProgressEvent)
	OnTerminal(TerminalEvent)
}

// multiSink fans events out to every registered sink.
type multiSink []EventSink

func (m multiSink) OnProgress(e ProgressEvent) {
	for _, s := range m {
		s.OnProgress(e)
	}
}

func (m multiSink) OnTerminal(e TerminalEvent) {
	for _, s := range m {
		s.OnTerminal(e)
	}
}
