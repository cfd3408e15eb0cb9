package flume

import (
	"context"
	"fmt"
	"sync"
)

// Async is a handle to a pipeline executing under the concurrent
// driver: one goroutine per element, databuses as the only shared data.
type Async struct {
	pipe      *Pipeline
	cancelFn  context.CancelFunc
	errorChan chan error
}

// Async starts the pipeline with one goroutine per element. Databuses
// follow the single-producer/single-consumer discipline, so no extra
// synchronization is needed between neighbours; wakeups travel over
// per-node doorbell channels. The pipeline must be Configured.
//
// Elements flush on the way out, so cancellation doesn't silently
// discard in-flight chunks.
func (p *Pipeline) Async(ctx context.Context) (*Async, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Configured {
		return nil, ErrInvalidState
	}
	ctx, cancelFn := context.WithCancel(ctx)

	// one doorbell per node; neighbours ring it after every transfer.
	bells := make(map[*node]doorbell, len(p.order))
	for _, n := range p.order {
		bells[n] = make(doorbell, 1)
	}
	errcs := make([]<-chan error, 0, len(p.order))
	for _, n := range p.order {
		errc := make(chan error, 1)
		errcs = append(errcs, errc)
		go p.runNode(ctx, n, bells[n], p.neighbours(n, bells), errc)
	}

	errc := make(chan error, 1)
	merged := mergeErrors(errcs)
	go func() {
		defer close(errc)
		// release the derived context whether or not anything failed.
		defer cancelFn()
		// first element failure cancels the others.
		for err := range merged {
			if err != nil {
				cancelFn()
				errc <- err
			}
		}
		p.mu.Lock()
		p.async = false
		p.setState(Stopped)
		p.mu.Unlock()
	}()

	p.async = true
	p.setState(Running)
	return &Async{pipe: p, cancelFn: cancelFn, errorChan: errc}, nil
}

// mergeErrors funnels the per-node error channels into one. At most
// one error gets through, the rest are dropped. The merged channel
// closes once every node channel closed, which is the signal that all
// node goroutines flushed and exited.
func mergeErrors(errcs []<-chan error) <-chan error {
	merged := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(len(errcs))
	for _, errc := range errcs {
		go func(errc <-chan error) {
			defer wg.Done()
			if err, ok := <-errc; ok {
				select {
				case merged <- err:
				default:
				}
			}
		}(errc)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	return merged
}

// doorbell wakes a parked element goroutine. Rings are lossy on
// purpose: one pending ring is enough.
type doorbell chan struct{}

func (d doorbell) ring() {
	select {
	case d <- struct{}{}:
	default:
	}
}

// neighbours returns the doorbells of every node sharing a bus with n.
func (p *Pipeline) neighbours(n *node, bells map[*node]doorbell) []doorbell {
	var ds []doorbell
	for _, l := range n.ins {
		ds = append(ds, bells[p.nodes[l.from]])
	}
	for _, l := range n.outs {
		ds = append(ds, bells[p.nodes[l.to]])
	}
	return ds
}

// runNode drives one element until its stream completes, it fails, or
// the context is canceled. The deferred flush drains the element's
// input buses and closes its outputs, cascading completion downstream.
func (p *Pipeline) runNode(ctx context.Context, n *node, wake doorbell, neighbours []doorbell, errs chan error) {
	defer close(errs)
	defer func() {
		if err := n.elem.Flush(); err != nil {
			select {
			case errs <- &ElementError{Element: n.name, Err: err}:
			default:
			}
		}
		for _, d := range neighbours {
			d.ring()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		outcome, err := n.elem.Step()
		if err != nil {
			if p.policy == ResetOnError {
				if resetErr := n.elem.Reset(); resetErr == nil {
					p.log.Error(fmt.Sprintf("%v reset %v after: %v", p, n.name, err))
					continue
				}
			}
			errs <- &ElementError{Element: n.name, Err: err}
			return
		}
		switch outcome {
		case Progressed:
			for _, d := range neighbours {
				d.ring()
			}
		case Complete:
			return
		case Starved, Blocked:
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
		}
	}
}

// Stop cancels the execution and waits for every element goroutine to
// flush and exit.
func (a *Async) Stop() error {
	a.cancelFn()
	return a.Await()
}

// Await blocks until the pipeline completes and returns the first error
// that occurred, if any. When it returns, every element goroutine has
// flushed and exited and the pipeline is Stopped.
func (a *Async) Await() error {
	var first error
	for err := range a.errorChan {
		if first == nil {
			first = err
		}
	}
	return first
}
