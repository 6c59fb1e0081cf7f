package notify

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"

	"github.com/superjcast/showwatch/pkg/metrics"
)

// Fanout sends every message to all sinks. It fails when any sink fails, so
// callers retry on the next tick; wrap sinks in Dedup to keep the ones that
// succeeded from repeating.
type Fanout struct {
	Sinks   []Dispatcher
	Metrics metrics.Recorder
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Dispatch(ctx context.Context, m Message) error {
	var errs []error
	for _, s := range f.Sinks {
		err := s.Dispatch(ctx, m)
		if f.Metrics != nil {
			f.Metrics.IncDispatch(s.Name(), err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) SetTopic(ctx context.Context, ch Channel, topic string) error {
	var errs []error
	for _, s := range f.Sinks {
		if err := s.SetTopic(ctx, ch, topic); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Dedup drops a message identical to one its sink accepted within TTL.
type Dedup struct {
	Sink       Dispatcher
	Cache      *freecache.Cache
	TTLSeconds int
	Metrics    metrics.Recorder
}

// NewDedupCache allocates a shared cache of the given size in megabytes.
func NewDedupCache(mb int) *freecache.Cache {
	if mb < 1 {
		mb = 1
	}
	return freecache.NewCache(mb * 1024 * 1024)
}

func (d *Dedup) Name() string { return d.Sink.Name() }

func (d *Dedup) key(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	return append([]byte(d.Sink.Name()+":"), sum[:]...), nil
}

func (d *Dedup) Dispatch(ctx context.Context, m Message) error {
	key, err := d.key(m)
	if err != nil {
		return err
	}
	if _, err := d.Cache.Get(key); err == nil {
		if d.Metrics != nil {
			d.Metrics.IncDeduplicated(d.Sink.Name())
		}
		return nil
	}
	if err := d.Sink.Dispatch(ctx, m); err != nil {
		return err
	}
	_ = d.Cache.Set(key, []byte{1}, d.TTLSeconds)
	return nil
}

func (d *Dedup) SetTopic(ctx context.Context, ch Channel, topic string) error {
	return d.Sink.SetTopic(ctx, ch, topic)
}
