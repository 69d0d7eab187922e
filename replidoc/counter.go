package replidoc

import (
	"fmt"

	"github.com/replidoc/replidoc/types"
)

// counterState sums every increment it has seen. Addition commutes, so no
// conflict handling is needed.
type counterState struct {
	value float64
}

func (s *counterState) kind() types.ContainerType { return types.CounterType }

// Counter is a replicated numeric counter.
type Counter struct {
	doc *Doc
	cid types.ContainerID
}

// NewCounter creates a detached counter.
func NewCounter() *Counter {
	d := newScratchDoc()
	return d.GetCounter("counter")
}

func (c *Counter) ID() types.ContainerID     { return c.cid }
func (c *Counter) Type() types.ContainerType { return types.CounterType }
func (c *Counter) IsAttached() bool          { return c.doc.peer != detachedPeer }
func (c *Counter) isContainer()              {}

func (c *Counter) state() (*counterState, error) {
	s, ok := c.doc.containers[c.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, c.cid)
	}
	return s.(*counterState), nil
}

// Increment adds delta to the counter.
func (c *Counter) Increment(delta float64) error {
	if err := c.doc.mutationGuard(); err != nil {
		return err
	}
	return c.doc.lock.execute(writeOperation, func() error {
		if _, err := c.state(); err != nil {
			return err
		}
		op := c.doc.newLocalOp(c.cid, CounterAdd{Delta: delta})
		c.doc.applyOp(op, true)
		return nil
	})
}

// Decrement subtracts delta from the counter.
func (c *Counter) Decrement(delta float64) error {
	return c.Increment(-delta)
}

// Get returns the current value.
func (c *Counter) Get() float64 {
	res, _ := c.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := c.state()
		if err != nil {
			return float64(0), nil
		}
		return s.value, nil
	})
	return res.(float64)
}

// GetValue returns the counter value as a double.
func (c *Counter) GetValue() types.Value { return types.NewDouble(c.Get()) }
