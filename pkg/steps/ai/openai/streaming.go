package openai

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxEventLineSize = 4 * 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry int
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	if e.Event != "" {
		ev.Str("event", e.Event)
	}
	if e.ID != "" {
		ev.Str("id", e.ID)
	}
	if e.Retry != 0 {
		ev.Int("retry", e.Retry)
	}
	ev.Str("data", e.Data)
}

var _ zerolog.LogObjectMarshaler = Event{}

// Decoder reads server-sent events from a stream.
//
// Lines may end in CR, LF or CRLF. Events are dispatched on a blank line;
// an event that is still open when the stream ends is discarded, as is an
// event containing a line longer than maxEventLineSize.
type Decoder struct {
	r    *bufio.Reader
	line []byte

	eventType string
	data      strings.Builder
	hasData   bool
	discard   bool
	lastID    string
	retry     int
	firstLine bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:         bufio.NewReaderSize(r, 64*1024),
		firstLine: true,
	}
}

// Next returns the next complete event, or io.EOF when the stream is exhausted.
func (d *Decoder) Next() (*Event, error) {
	for {
		line, tooLong, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if d.firstLine {
			d.firstLine = false
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if tooLong {
			log.Debug().Int("limit", maxEventLineSize).Msg("dropping oversized stream line")
			d.discard = true
			continue
		}

		if line == "" {
			if ev := d.dispatch(); ev != nil {
				return ev, nil
			}
			continue
		}

		d.parseLine(line)
	}
}

// readLine returns the next line without its terminator. Bytes past
// maxEventLineSize are read and thrown away, and tooLong is set.
func (d *Decoder) readLine() (line string, tooLong bool, err error) {
	d.line = d.line[:0]
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && (len(d.line) > 0 || tooLong) {
				return string(d.line), tooLong, nil
			}
			return "", false, err
		}

		switch b {
		case '\n':
			return string(d.line), tooLong, nil
		case '\r':
			// swallow the LF of a CRLF pair
			if next, err := d.r.Peek(1); err == nil && next[0] == '\n' {
				_, _ = d.r.ReadByte()
			}
			return string(d.line), tooLong, nil
		}

		if len(d.line) >= maxEventLineSize {
			tooLong = true
			continue
		}
		d.line = append(d.line, b)
	}
}

func (d *Decoder) parseLine(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	field, value := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = strings.TrimPrefix(line[i+1:], " ")
	}

	switch field {
	case "event":
		d.eventType = value
	case "data":
		if d.hasData {
			d.data.WriteByte('\n')
		}
		d.data.WriteString(value)
		d.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.lastID = value
		}
	case "retry":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			d.retry = n
		}
	}
}

func (d *Decoder) dispatch() *Event {
	defer func() {
		d.eventType = ""
		d.data.Reset()
		d.hasData = false
		d.discard = false
	}()

	if !d.hasData || d.discard {
		return nil
	}

	return &Event{
		Event: d.eventType,
		Data:  d.data.String(),
		ID:    d.lastID,
		Retry: d.retry,
	}
}
