package flume

import (
	"fmt"
	"sync"

	"github.com/flume-dsp/flume/log"
)

// ErrorPolicy decides what the pipeline does with an element processing
// fault.
type ErrorPolicy int

const (
	// StopOnError stops the pipeline and reports the failure.
	StopOnError ErrorPolicy = iota
	// ResetOnError resets the failed element and keeps the pipeline
	// running. If the reset itself fails, the pipeline stops.
	ResetOnError
)

// Pipeline is a graph of elements connected through databuses plus the
// scheduler driving them through the lifecycle. All state is owned by
// the Pipeline value: independent pipelines never interfere.
type Pipeline struct {
	uid    string
	name   string
	policy ErrorPolicy
	metric Metric

	nodes map[string]*node
	// names in construction order, teardown runs in reverse.
	names []string
	links []*link
	order []*node

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	async bool

	log log.Logger
}

// node is an element bound into the pipeline graph.
type node struct {
	name     string
	elem     Element
	ins      []*link
	outs     []*link
	format   Format
	complete bool
}

// link is a databus connection between two named nodes.
type link struct {
	from     string
	to       string
	bus      Bus
	feedback bool
}

// Option provides a way to set functional parameters to pipeline.
type Option func(*Pipeline) error

// New creates a new pipeline from nodes and links and validates the
// graph. The returned pipeline is in the Constructed state.
func New(options ...Option) (*Pipeline, error) {
	p := &Pipeline{
		uid:   newUID(),
		nodes: make(map[string]*node),
		state: Constructed,
		log:   log.GetLogger(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	if err := p.bind(); err != nil {
		return nil, err
	}
	return p, nil
}

// WithName sets name to pipeline.
func WithName(n string) Option {
	return func(p *Pipeline) error {
		p.name = n
		return nil
	}
}

// WithMetric adds metrics for this pipeline and all elements.
func WithMetric(m Metric) Option {
	return func(p *Pipeline) error {
		p.metric = m
		return nil
	}
}

// WithErrorPolicy sets the element failure policy. Default is
// StopOnError.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(p *Pipeline) error {
		p.policy = policy
		return nil
	}
}

// WithNode adds a named element to the pipeline graph.
func WithNode(name string, e Element) Option {
	return func(p *Pipeline) error {
		if name == "" {
			return fmt.Errorf("node name is empty")
		}
		if e == nil {
			return fmt.Errorf("node %v: element is nil", name)
		}
		if _, ok := p.nodes[name]; ok {
			return fmt.Errorf("node %v: already added", name)
		}
		p.nodes[name] = &node{name: name, elem: e}
		p.names = append(p.names, name)
		return nil
	}
}

// WithLink connects the output port of node from to an input port of
// node to through the provided bus.
func WithLink(from, to string, bus Bus) Option {
	return func(p *Pipeline) error {
		return p.addLink(from, to, bus, false)
	}
}

// WithFeedbackLink connects two nodes against the forward data flow,
// for intentional feedback paths such as metering. Feedback links don't
// participate in scheduling order or format negotiation, so the graph
// without them must still be acyclic.
func WithFeedbackLink(from, to string, bus Bus) Option {
	return func(p *Pipeline) error {
		return p.addLink(from, to, bus, true)
	}
}

func (p *Pipeline) addLink(from, to string, bus Bus, feedback bool) error {
	if bus == nil {
		return fmt.Errorf("link %v->%v: bus is nil", from, to)
	}
	p.links = append(p.links, &link{from: from, to: to, bus: bus, feedback: feedback})
	return nil
}

// bind attaches buses to element ports and validates the topology.
func (p *Pipeline) bind() error {
	if len(p.nodes) == 0 {
		return fmt.Errorf("pipeline has no nodes")
	}
	for _, l := range p.links {
		from, ok := p.nodes[l.from]
		if !ok {
			return fmt.Errorf("link %v->%v: unknown node %v", l.from, l.to, l.from)
		}
		to, ok := p.nodes[l.to]
		if !ok {
			return fmt.Errorf("link %v->%v: unknown node %v", l.from, l.to, l.to)
		}
		emitter, ok := from.elem.(Emitter)
		if !ok {
			return fmt.Errorf("link %v->%v: %v has no output port", l.from, l.to, l.from)
		}
		receiver, ok := to.elem.(Receiver)
		if !ok {
			return fmt.Errorf("link %v->%v: %v has no input port", l.from, l.to, l.to)
		}
		if !l.feedback && hasForwardOut(from) {
			return fmt.Errorf("link %v->%v: %v output port already connected", l.from, l.to, l.from)
		}
		emitter.BindOutput(l.bus)
		receiver.BindInput(l.bus)
		from.outs = append(from.outs, l)
		to.ins = append(to.ins, l)
	}
	order, err := p.sort()
	if err != nil {
		return err
	}
	p.order = order
	return nil
}

func hasForwardOut(n *node) bool {
	for _, l := range n.outs {
		if !l.feedback {
			return true
		}
	}
	return false
}

// sort returns nodes in an order consistent with the forward data flow.
func (p *Pipeline) sort() ([]*node, error) {
	indegree := make(map[string]int, len(p.nodes))
	for _, name := range p.names {
		indegree[name] = 0
	}
	for _, l := range p.links {
		if l.feedback {
			continue
		}
		indegree[l.to]++
	}
	queue := make([]string, 0, len(p.nodes))
	for _, name := range p.names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	order := make([]*node, 0, len(p.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		n := p.nodes[name]
		order = append(order, n)
		for _, l := range n.outs {
			if l.feedback {
				continue
			}
			indegree[l.to]--
			if indegree[l.to] == 0 {
				queue = append(queue, l.to)
			}
		}
	}
	if len(order) != len(p.nodes) {
		return nil, fmt.Errorf("pipeline graph has a cycle; use WithFeedbackLink for intentional feedback")
	}
	return order, nil
}

// Configure negotiates formats across the graph and prepares every
// element for steady-state processing. It is safe to call again with
// the same topology; a failure keeps the pipeline in the Constructed
// state so no format mismatch survives into Running.
func (p *Pipeline) Configure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Constructed && p.state != Configured {
		return ErrInvalidState
	}
	for _, n := range p.order {
		format, err := p.upstreamFormat(n)
		if err != nil {
			p.state = Constructed
			return err
		}
		if err := n.elem.Configure(format); err != nil {
			p.state = Constructed
			return fmt.Errorf("configure %v: %w", n.name, err)
		}
		n.complete = false
		if e, ok := n.elem.(Emitter); ok {
			n.format = e.OutputFormat()
		} else {
			n.format = format
		}
		if p.metric != nil {
			if m, ok := n.elem.(Meterable); ok {
				m.SetMeasure(p.metric.Meter(n.name, n.format.SampleRate))
			}
		}
	}
	p.state = Configured
	p.log.Debug(fmt.Sprintf("%v configured", p))
	return nil
}

// upstreamFormat merges the negotiated output formats of all forward
// upstream nodes. Sources get the zero format and declare their own.
func (p *Pipeline) upstreamFormat(n *node) (Format, error) {
	var format Format
	for _, l := range n.ins {
		if l.feedback {
			continue
		}
		up := p.nodes[l.from].format
		if format.IsZero() {
			format = up
			continue
		}
		if !format.Compatible(up) {
			return Format{}, &FormatError{
				Element: n.name,
				Format:  up,
				Reason:  fmt.Sprintf("input formats differ: %v vs %v", format, up),
			}
		}
	}
	return format, nil
}

// Meterable is implemented by elements that report processed frames to
// a pipeline meter.
type Meterable interface {
	SetMeasure(MeasureFunc)
}

// String returns pipeline name if set, uid otherwise.
func (p *Pipeline) String() string {
	if p.name == "" {
		return p.uid
	}
	return fmt.Sprintf("%v %v", p.name, p.uid)
}

// sources returns nodes with no forward input links.
func (p *Pipeline) sources() []*node {
	var srcs []*node
	for _, n := range p.order {
		forward := false
		for _, l := range n.ins {
			if !l.feedback {
				forward = true
				break
			}
		}
		if !forward {
			srcs = append(srcs, n)
		}
	}
	return srcs
}
