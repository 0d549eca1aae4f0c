package notify

import (
	"context"
	"time"
)

// Kind classifies a notification record.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
	KindError  Kind = "error"
)

// Record is one observability entry shipped to the sink.
type Record struct {
	Kind    Kind
	Content string
	Time    time.Time
}

// Notifier delivers records on a best-effort basis. Notify must never block the
// caller or report failure; Close flushes what is queued until ctx expires.
type Notifier interface {
	Notify(rec Record)
	Close(ctx context.Context) error
}

// Nop discards every record. Used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(Record) {}

func (Nop) Close(context.Context) error { return nil }

// Input, Output and Error build records stamped with the current time.
func Input(content string) Record  { return Record{Kind: KindInput, Content: content, Time: time.Now()} }
func Output(content string) Record { return Record{Kind: KindOutput, Content: content, Time: time.Now()} }
func Error(content string) Record  { return Record{Kind: KindError, Content: content, Time: time.Now()} }
