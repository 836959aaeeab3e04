package observability

import "context"

// Sink increments named counters. Implementations must never block the
// caller on failure; increments are fire-and-forget.
type Sink interface {
	Increment(ctx context.Context, name string)
}

type incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// KVSink counts into the shared key-value tier under metrics:<name> so the
// counters survive process restarts and are visible across instances.
type KVSink struct {
	kv incrementer
}

func NewKVSink(kv incrementer) *KVSink {
	return &KVSink{kv: kv}
}

func (s *KVSink) Increment(ctx context.Context, name string) {
	if s == nil || s.kv == nil {
		return
	}
	_, _ = s.kv.Incr(ctx, "metrics:"+name)
}

// NopSink discards all increments.
type NopSink struct{}

func (NopSink) Increment(context.Context, string) {}

// MultiSink fans increments out to every child sink.
type MultiSink []Sink

func (m MultiSink) Increment(ctx context.Context, name string) {
	for _, s := range m {
		if s != nil {
			s.Increment(ctx, name)
		}
	}
}
