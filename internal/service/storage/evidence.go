package storage

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimestampLayout formats evidence timestamps to whole seconds.
const TimestampLayout = "2006-01-02_15-04-05"

// Sink stores an encoded evidence image under name and returns where it went.
// Name collisions are the sink's concern.
type Sink interface {
	Write(ctx context.Context, name string, img image.Image) (string, error)
}

// Persister owns the evidence naming policy and delegates I/O to a Sink.
type Persister struct {
	sink Sink
}

// NewPersister creates a Persister writing through sink.
func NewPersister(sink Sink) *Persister {
	return &Persister{sink: sink}
}

// Name builds the evidence name "{class}_{timestamp}" with the timestamp truncated to
// whole seconds. Two events of one class within the same second share a name. Path
// separators in the class name are replaced so the name is always a single path element.
func Name(className string, ts time.Time) string {
	return safeClass(className) + "_" + ts.Format(TimestampLayout)
}

func safeClass(className string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '-'
		}
		return r
	}, className)
}

// ParseName splits an evidence name (with or without extension) back into class and
// timestamp. Class names may themselves contain underscores or spaces.
func ParseName(name string, loc *time.Location) (string, time.Time, error) {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	// The timestamp is always the last len(TimestampLayout) characters.
	if len(name) < len(TimestampLayout)+2 || name[len(name)-len(TimestampLayout)-1] != '_' {
		return "", time.Time{}, errors.Errorf("invalid evidence name %q", name)
	}
	class := name[:len(name)-len(TimestampLayout)-1]
	ts, err := time.ParseInLocation(TimestampLayout, name[len(name)-len(TimestampLayout):], loc)
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "invalid timestamp in evidence name %q", name)
	}
	return class, ts, nil
}

// Persist names the frame after class and timestamp and writes it to the sink.
func (p *Persister) Persist(ctx context.Context, className string, ts time.Time, frame image.Image) (string, error) {
	if frame == nil {
		return "", errors.New("no frame to persist")
	}
	name := Name(className, ts)
	location, err := p.sink.Write(ctx, name, frame)
	if err != nil {
		return "", errors.Wrapf(err, "failed to persist %s", name)
	}
	return location, nil
}
