package audio

import (
	"context"
	"sync"
)

type FakeOutput struct {
	mu    sync.Mutex
	trace []string

	PlayFunc func(ctx context.Context, source string, generation uint64) error
	StopFunc func() error
}

func (f *FakeOutput) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeOutput) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeOutput) Play(ctx context.Context, source string, generation uint64) error {
	f.record("Play " + source)
	if f.PlayFunc != nil {
		return f.PlayFunc(ctx, source, generation)
	}
	return nil
}

func (f *FakeOutput) Stop() error {
	f.record("Stop")
	if f.StopFunc != nil {
		return f.StopFunc()
	}
	return nil
}
