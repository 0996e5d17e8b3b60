// Package interceptors provides interceptors for shapeclient calls:
// logging, tracing, metrics, invocation IDs and the User-Agent header.
package interceptors

import (
	"sync"

	"github.com/broady/shapeclient"
)

// calls holds per-call state for interceptors shared by concurrent calls.
// Each call has its own InputContext, which keys the state from
// ReadBeforeExecution until ReadAfterExecution.
type calls[T any] struct {
	m sync.Map // *shapeclient.InputContext -> T
}

func (c *calls[T]) start(in *shapeclient.InputContext, v T) {
	c.m.Store(in, v)
}

func (c *calls[T]) get(in *shapeclient.InputContext) (T, bool) {
	v, ok := c.m.Load(in)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func (c *calls[T]) finish(in *shapeclient.InputContext) (T, bool) {
	v, ok := c.m.LoadAndDelete(in)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
