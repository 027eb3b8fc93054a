package models

// Event is one tagged outbound message on a deployment stream. The closed set
// of implementations below is exhaustive; consumers switch on the concrete
// type or on Name().
type Event interface {
	// Name is the SSE event name the message is delivered under.
	Name() string
}

// StatusEvent reports a change of the run's (lifecycle, conclusion) pair.
type StatusEvent struct {
	Status     Lifecycle  `json:"status"`
	Conclusion Conclusion `json:"conclusion,omitempty"`
}

func (StatusEvent) Name() string { return "status" }

// LogEvent carries new log content. Replace is set when the content is a full
// replacement rather than an append.
type LogEvent struct {
	Lines   string `json:"lines"`
	Replace bool   `json:"replace,omitempty"`
}

func (LogEvent) Name() string { return "log" }

// OutputsEvent carries the provisioned-resource outputs of a successful run,
// attributed to the originating request so the client can persist its
// deployment record.
type OutputsEvent struct {
	RunID     string            `json:"runId"`
	UserID    string            `json:"userId"`
	Requested ResourceFlags     `json:"requested"`
	Outputs   DeploymentOutputs `json:"outputs"`
}

func (OutputsEvent) Name() string { return "outputs" }

// DoneEvent signals normal end of stream.
type DoneEvent struct {
	Message string `json:"message"`
}

func (DoneEvent) Name() string { return "done" }

// ErrorEvent signals abnormal end of stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Name() string { return "error" }
