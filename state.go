package flume

import "fmt"

// State identifies one of the possible lifecycle states a pipeline can
// be in:
//
//	Constructed -> Configured -> Running <-> Paused -> Stopped -> TornDown
//
// Running and Paused may alternate any number of times. Stopped flushes
// every element before it is reached; TornDown is terminal.
type State int

const (
	// Constructed means the graph is validated but formats are not
	// negotiated yet.
	Constructed State = iota
	// Configured means every element accepted its format and the
	// pipeline can be started.
	Configured
	// Running means a driver is executing the pipeline.
	Running
	// Paused means execution is suspended and can be resumed.
	Paused
	// Stopped means the pipeline was drained and flushed.
	Stopped
	// TornDown means all resources are released. Terminal.
	TornDown
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case TornDown:
		return "torn down"
	}
	return "unknown"
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start moves a configured pipeline to Running under the cooperative
// driver. The caller then drives it with Cycle or Run.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Configured {
		return ErrInvalidState
	}
	p.setState(Running)
	return nil
}

// Pause suspends execution. The Run loop parks until Resume or Stop.
// Pausing is a cooperative driver control; the concurrent driver is
// paused by not feeding its devices.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Running || p.async {
		return ErrInvalidState
	}
	p.setState(Paused)
	return nil
}

// Resume continues a paused pipeline.
func (p *Pipeline) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Paused {
		return ErrInvalidState
	}
	p.setState(Running)
	return nil
}

// setState transitions the lifecycle and wakes any parked Run loop.
// Callers must hold p.mu.
func (p *Pipeline) setState(s State) {
	if p.state == s {
		return
	}
	p.log.Debug(fmt.Sprintf("%v %v -> %v", p, p.state, s))
	p.state = s
	p.cond.Broadcast()
}
