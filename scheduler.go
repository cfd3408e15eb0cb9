package flume

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// Cycle runs one scheduling pass of the cooperative driver: every
// element is visited exactly once, in an order consistent with the
// dependency graph. Visiting order is the documented tie-break policy:
// fixed topological round-robin, so no schedulable element can be
// skipped forever. Starved and blocked elements yield without error.
//
// It reports whether any element made progress.
func (p *Pipeline) Cycle() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Running || p.async {
		return false, ErrInvalidState
	}
	return p.cycle()
}

// cycle visits every incomplete node once. Callers must hold p.mu.
func (p *Pipeline) cycle() (bool, error) {
	progress := false
	for _, n := range p.order {
		if n.complete {
			continue
		}
		made, err := p.step(n)
		if err != nil {
			return progress, err
		}
		progress = progress || made
	}
	return progress, nil
}

// step invokes one element step and applies the error policy.
func (p *Pipeline) step(n *node) (bool, error) {
	outcome, err := n.elem.Step()
	if err != nil {
		elementErr := &ElementError{Element: n.name, Err: err}
		if p.policy == ResetOnError {
			if resetErr := n.elem.Reset(); resetErr == nil {
				p.log.Error(fmt.Sprintf("%v reset %v after: %v", p, n.name, err))
				return false, nil
			}
		}
		return false, elementErr
	}
	switch outcome {
	case Progressed:
		return true, nil
	case Complete:
		n.complete = true
	}
	return false, nil
}

// Run drives the pipeline until every source completes and the chain
// drains, the context is canceled, or Stop is called from another
// goroutine. A cancellation or natural completion stops the pipeline
// with full flush semantics: no in-flight chunk is dropped silently.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Running || p.async {
		p.mu.Unlock()
		return ErrInvalidState
	}
	p.mu.Unlock()

	// wake the paused loop when the context is canceled.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			p.cond.Broadcast()
		case <-watcherDone:
		}
	}()

	for {
		p.mu.Lock()
		for p.state == Paused && ctx.Err() == nil {
			p.cond.Wait()
		}
		if ctx.Err() != nil {
			err := p.stop()
			p.mu.Unlock()
			if err != nil {
				return errors.Join(ctx.Err(), err)
			}
			return ctx.Err()
		}
		if p.state != Running {
			// stopped concurrently.
			p.mu.Unlock()
			return nil
		}
		progress, err := p.cycle()
		if err != nil {
			stopErr := p.stop()
			p.mu.Unlock()
			return errors.Join(err, stopErr)
		}
		if !progress {
			if p.sourcesComplete() {
				err := p.stop()
				p.mu.Unlock()
				return err
			}
			p.mu.Unlock()
			// idle cycle: sources are waiting on a device.
			runtime.Gosched()
			continue
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline) sourcesComplete() bool {
	for _, n := range p.sources() {
		if !n.complete {
			return false
		}
	}
	return true
}

// Stop drains buffered chunks into the sinks, flushes every element in
// downstream-to-upstream order and moves the pipeline to Stopped. Any
// buffer occupancy at stop time reaches the sinks before teardown.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.async || (p.state != Running && p.state != Paused) {
		return ErrInvalidState
	}
	return p.stop()
}

// stop implements Stop. Callers must hold p.mu.
func (p *Pipeline) stop() error {
	if p.state == Stopped {
		return nil
	}
	drainErr := p.drain()
	flushErr := p.flushAll()
	p.setState(Stopped)
	return errors.Join(drainErr, flushErr)
}

// drain steps every non-source element until the chain is quiescent, so
// chunks buffered in databuses reach the sinks. Sources are not stepped:
// stop means no new data.
func (p *Pipeline) drain() error {
	for {
		progress := false
		for _, n := range p.order {
			if n.complete || isSource(n) {
				continue
			}
			made, err := p.step(n)
			if err != nil {
				return err
			}
			progress = progress || made
		}
		if !progress {
			return nil
		}
	}
}

func isSource(n *node) bool {
	for _, l := range n.ins {
		if !l.feedback {
			return false
		}
	}
	return true
}

// flushAll flushes elements downstream to upstream. Each flush drains
// the element's own input buses before closing its outputs, so the
// ordering cannot lose chunks regardless of occupancy.
func (p *Pipeline) flushAll() error {
	var errs []error
	for i := len(p.order) - 1; i >= 0; i-- {
		n := p.order[i]
		if err := n.elem.Flush(); err != nil {
			errs = append(errs, &ElementError{Element: n.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// TearDown releases every databus and element resource in reverse
// construction order. The pipeline is unusable afterwards.
func (p *Pipeline) TearDown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Stopped {
		return ErrInvalidState
	}
	for i := len(p.links) - 1; i >= 0; i-- {
		p.links[i].bus.Close()
	}
	p.setState(TornDown)
	return nil
}
