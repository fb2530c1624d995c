package client

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

const maxEventLine = 1 << 20

// ReadEvents parses an event stream and calls fn for every `data:` payload in
// order. Comment lines, other fields and undecodable payloads are skipped. It
// returns nil at end of stream and the first error from fn or the reader.
func ReadEvents(r io.Reader, fn func(chat.Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		var ev chat.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return errors.Wrap(sc.Err(), "read event stream")
}
