package consumer

import (
	"fmt"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/dump"
)

// Handler is the application-level callback of spec §4.5's "handler
// contract": it receives the decoded payload and reports success or
// failure. A failing Handler causes the message to be left un-acked in
// stream mode (spec §7, HandlerError policy) so the server redelivers it.
type Handler interface {
	Handle(msg chainevent.StreamerMessage) error
}

// observingHandler is the default Handler: it forwards every payload to the
// C6 observer and never fails, since Observer.Observe performs no I/O that
// can be retried.
type observingHandler struct {
	observer *dump.Observer
}

// NewObservingHandler wraps observer as a Handler.
func NewObservingHandler(observer *dump.Observer) Handler {
	return observingHandler{observer: observer}
}

func (h observingHandler) Handle(msg chainevent.StreamerMessage) error {
	h.observer.Observe(msg)
	return nil
}

// wrapHandlerErr tags a Handler failure with the stable sentinel spec §7
// names (HandlerError).
func wrapHandlerErr(err error) error {
	return fmt.Errorf("%w: %v", borealiserr.ErrHandler, err)
}
