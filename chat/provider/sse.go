package provider

import (
	"bufio"
	"io"
	"strings"
)

// sseFrame is one decoded server-sent event. Fields not used by either
// upstream (id, retry) are dropped during decode.
type sseFrame struct {
	event string
	data  string
}

// sseDecoder incrementally parses a text/event-stream body. Comment lines
// and keep-alive blank frames are consumed silently.
type sseDecoder struct {
	scanner *bufio.Scanner
}

func newSseDecoder(r io.Reader) *sseDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	return &sseDecoder{scanner: scanner}
}

// Next returns the next non-empty frame, or io.EOF when the body ends.
func (d *sseDecoder) Next() (sseFrame, error) {
	var frame sseFrame
	var data []string
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			// Dispatch boundary. Frames with no data are keep-alives.
			if len(data) == 0 && frame.event == "" {
				continue
			}
			frame.data = strings.Join(data, "\n")
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := d.scanner.Err(); err != nil {
		return sseFrame{}, err
	}
	if len(data) > 0 || frame.event != "" {
		frame.data = strings.Join(data, "\n")
		return frame, nil
	}
	return sseFrame{}, io.EOF
}
