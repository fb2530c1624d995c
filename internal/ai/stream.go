package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const maxStreamLine = 2 << 20

// ErrTruncated is returned when a backend closes the body before its end-of-stream marker.
var ErrTruncated = errors.New("stream ended before completion")

// stream runs produce in its own goroutine and adapts it to the Provider channel
// pair. emit blocks until the fragment is taken or ctx ends; empty fragments are
// dropped. The error, if any, is sent after the last fragment.
func stream(ctx context.Context, produce func(emit func(string) error) error) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		err := produce(func(s string) error {
			if s == "" {
				return nil
			}
			select {
			case chunks <- s:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil {
			// body ended early because the request was canceled
			err = ctx.Err()
		}
		if err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

// postJSON sends body and returns the response body of a 2xx answer. Any other
// status is turned into an error carrying a short excerpt of the body.
func postJSON(ctx context.Context, hc *http.Client, url string, body any, header http.Header) (io.ReadCloser, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(excerpt))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, errors.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return resp.Body, nil
}

// eachLine calls fn with every non-blank line of r until fn reports done or fails.
func eachLine(r io.Reader, fn func(line []byte) (done bool, err error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxStreamLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		done, err := fn(line)
		if err != nil || done {
			return err
		}
	}
	return errors.Wrap(sc.Err(), "read stream")
}
