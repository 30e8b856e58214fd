// Package borealiserr defines the error taxonomy shared by the producer and
// consumer sides of the bridge. Callers compare against these sentinels with
// errors.Is. Errors the module classifies wrap one of them; other errors
// (for example JSON parse errors from the stdin source, codec encode errors
// and context errors) are returned without a sentinel.
package borealiserr

import "errors"

var (
	// ErrConfig marks a fatal startup configuration problem: unknown enum
	// spelling, a missing required flag, a malformed path.
	ErrConfig = errors.New("borealis: config error")

	// ErrConnect marks a failure to open a bus connection, or an initial
	// flush that timed out.
	ErrConnect = errors.New("borealis: connect error")

	// ErrPublish marks a transient publish rejection (buffer full,
	// disconnected). Never fatal to the running pipeline.
	ErrPublish = errors.New("borealis: publish error")

	// ErrFetchTimeout marks an expired fetch/receive deadline. Not a
	// failure; callers treat it as a loop continuation.
	ErrFetchTimeout = errors.New("borealis: fetch timeout")

	// ErrStreamProvision marks a server refusal to create or open a
	// stream or consumer.
	ErrStreamProvision = errors.New("borealis: stream provision error")

	// ErrMalformedEnvelope marks a decode failure: bad version byte,
	// truncated framing, trailing garbage, or a JSON value that isn't an
	// object with the required keys.
	ErrMalformedEnvelope = errors.New("borealis: malformed envelope")

	// ErrHandler marks an application-level handler failure.
	ErrHandler = errors.New("borealis: handler error")
)
