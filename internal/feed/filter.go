package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// Filter runs a JavaScript predicate over raw events before they reach the
// classifier. The script must export a function (anonymous or named
// 'filter') taking the event object; returning null, undefined or false
// drops the event. Script errors keep the event — a broken filter must not
// starve the pipeline.
type Filter struct {
	script string
	logger *logrus.Logger
}

// NewFilter loads and validates the script at path.
func NewFilter(path string, logger *logrus.Logger) (*Filter, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter script: %w", err)
	}
	f := &Filter{script: string(content), logger: logger}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid filter script: %w", err)
	}
	logger.Infof("Loaded event filter script: %s", path)
	return f, nil
}

// validate checks that the script exports a callable.
func (f *Filter) validate() error {
	vm := goja.New()
	result, err := vm.RunString(f.script)
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if _, ok := callable(vm, result); !ok {
		return fmt.Errorf("script must export a function (either anonymous or named 'filter')")
	}
	return nil
}

// Keep reports whether the event should be forwarded.
func (f *Filter) Keep(ev models.RawEvent) bool {
	// goja.Runtime is not safe for reuse across calls with shared state;
	// a fresh VM per event keeps the filter side-effect free.
	vm := goja.New()
	result, err := vm.RunString(f.script)
	if err != nil {
		f.logger.Errorf("Filter script failed to execute: %v", err)
		return true
	}
	fn, ok := callable(vm, result)
	if !ok {
		f.logger.Errorf("Filter script lost its exported function")
		return true
	}

	eventJSON, err := json.Marshal(map[string]interface{}{
		"table":   ev.Table,
		"type":    string(ev.Type),
		"new_row": ev.NewRow,
		"old_row": ev.OldRow,
	})
	if err != nil {
		f.logger.Errorf("Failed to marshal event for filter: %v", err)
		return true
	}
	if err := vm.Set("eventJSON", string(eventJSON)); err != nil {
		f.logger.Errorf("Failed to bind event for filter: %v", err)
		return true
	}
	eventObj, err := vm.RunString("JSON.parse(eventJSON)")
	if err != nil {
		f.logger.Errorf("Failed to parse event for filter: %v", err)
		return true
	}

	verdict, err := fn(goja.Undefined(), eventObj)
	if err != nil {
		f.logger.Errorf("Filter function error: %v", err)
		return true
	}
	if verdict == nil || goja.IsUndefined(verdict) || goja.IsNull(verdict) {
		return false
	}
	return verdict.ToBoolean()
}

// callable resolves the exported function: the script's own return value
// first, then a named 'filter' function.
func callable(vm *goja.Runtime, result goja.Value) (goja.Callable, bool) {
	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		if fn, ok := goja.AssertFunction(result); ok {
			return fn, true
		}
	}
	named := vm.Get("filter")
	if named != nil && !goja.IsUndefined(named) && !goja.IsNull(named) {
		if fn, ok := goja.AssertFunction(named); ok {
			return fn, true
		}
	}
	return nil, false
}

// filteredFeed wraps a Feed, dropping events the filter rejects.
type filteredFeed struct {
	inner  Feed
	filter *Filter
}

// WithFilter returns a Feed that applies filter to every event. A nil
// filter returns the inner feed unchanged.
func WithFilter(inner Feed, filter *Filter) Feed {
	if filter == nil {
		return inner
	}
	return &filteredFeed{inner: inner, filter: filter}
}

func (f *filteredFeed) Subscribe(ctx context.Context, table string, types []models.EventType) (<-chan models.EventBatch, error) {
	batches, err := f.inner.Subscribe(ctx, table, types)
	if err != nil {
		return nil, err
	}
	out := make(chan models.EventBatch)
	go func() {
		defer close(out)
		for batch := range batches {
			kept := batch[:0:0]
			for _, ev := range batch {
				if f.filter.Keep(ev) {
					kept = append(kept, ev)
				}
			}
			if len(kept) == 0 {
				continue
			}
			select {
			case out <- kept:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *filteredFeed) Unsubscribe(table string) error {
	return f.inner.Unsubscribe(table)
}
