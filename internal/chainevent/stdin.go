package chainevent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// StdinSource adapts a newline-delimited JSON stream of StreamerMessage
// values into a Source. This is the concrete realization of the
// out-of-scope indexer bridge (spec §6, "Indexer boundary"): the real
// indexer process is expected to pipe one StreamerMessage per line into
// this process's stdin.
type StdinSource struct {
	scanner *bufio.Scanner
}

func NewStdinSource(r io.Reader) *StdinSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &StdinSource{scanner: scanner}
}

func (s *StdinSource) Next(ctx context.Context) (StreamerMessage, bool, error) {
	select {
	case <-ctx.Done():
		return StreamerMessage{}, false, ctx.Err()
	default:
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return StreamerMessage{}, false, err
		}
		return StreamerMessage{}, false, nil
	}

	var msg StreamerMessage
	if err := json.Unmarshal(s.scanner.Bytes(), &msg); err != nil {
		return StreamerMessage{}, false, err
	}
	return msg, true, nil
}
