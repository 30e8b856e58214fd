package connsup

// Kind enumerates the lifecycle events the supervisor's loop consumes (spec
// §4.2, "Events").
type Kind int

const (
	// NewConnectionRequest is posted by a publisher/consumer/health
	// checker that observed a failure using the connection tagged CID.
	NewConnectionRequest Kind = iota
	// Reestablished is posted by the bus client's reconnect callback.
	Reestablished
	// Lost is posted by the bus client's disconnect callback.
	Lost
	// Closed is posted by the bus client's closed callback.
	Closed
)

func (k Kind) String() string {
	switch k {
	case NewConnectionRequest:
		return "new_connection_request"
	case Reestablished:
		return "reestablished"
	case Lost:
		return "lost"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a lifecycle transition tagged with the CID it pertains to. The
// supervisor drops events whose CID is older than the current one (spec
// §4.2, property P7).
type Event struct {
	Kind Kind
	CID  uint64
}
