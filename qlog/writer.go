package qlog

import (
	"bufio"
	"io"
	"time"

	"github.com/quicnet/congestion/internal/utils"

	"github.com/francoispqt/gojay"
)

const eventChanSize = 50

// A writer serializes events to NDJSON records, decoupled from the
// connection's goroutine by a buffered channel.
type writer struct {
	w             io.WriteCloser
	referenceTime time.Time

	events     chan event
	encodeErr  error
	runStopped chan struct{}
}

func newWriter(w io.WriteCloser) *writer {
	return &writer{
		w:             w,
		referenceTime: time.Now(),
		events:        make(chan event, eventChanSize),
		runStopped:    make(chan struct{}),
	}
}

func (w *writer) Run() {
	defer close(w.runStopped)
	buf := bufio.NewWriter(w.w)
	enc := gojay.NewEncoder(buf)
	if err := enc.Encode(topLevel{
		trace: trace{CommonFields: commonFields{ReferenceTime: w.referenceTime}},
	}); err != nil {
		w.encodeErr = err
	}
	buf.WriteByte('\n')
	for ev := range w.events {
		if w.encodeErr != nil { // if encoding failed, just continue draining the channel
			continue
		}
		if err := enc.Encode(ev); err != nil {
			w.encodeErr = err
			continue
		}
		buf.WriteByte('\n')
	}
	if w.encodeErr != nil {
		utils.DefaultLogger.Errorf("Exporting qlog failed: %s", w.encodeErr)
		return
	}
	if err := buf.Flush(); err != nil {
		utils.DefaultLogger.Errorf("Exporting qlog failed: %s", err)
	}
	w.w.Close()
}

func (w *writer) RecordEvent(details eventDetails) {
	w.events <- event{
		RelativeTime: time.Since(w.referenceTime),
		eventDetails: details,
	}
}

func (w *writer) Close() {
	close(w.events)
	<-w.runStopped
}
