package colony

// Flow is a visual hint: a resource of Kind travelling along Path,
// starting at Origin. Sinks may ignore it; it never feeds back into state.
type Flow struct {
	Origin NodeID       `json:"origin"`
	Path   []NodeID     `json:"path"`
	Kind   ResourceKind `json:"kind"`
}

// FlowSink receives flows as the economy and infection engine compute them.
type FlowSink interface {
	ReportFlow(Flow)
}

// FlowSinkFunc adapts a function to FlowSink.
type FlowSinkFunc func(Flow)

func (f FlowSinkFunc) ReportFlow(fl Flow) { f(fl) }
