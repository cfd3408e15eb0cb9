// Package config builds pipelines from YAML descriptions. A description
// names the stream format, the elements and the links between them, so
// fixed topologies can live in files instead of code.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/device/mp3file"
	"github.com/flume-dsp/flume/device/wavfile"
	"github.com/flume-dsp/flume/element"
)

// Config is the root of a pipeline description.
type Config struct {
	Name   string       `yaml:"name"`             // Pipeline name used in logs and metrics.
	Policy string       `yaml:"on_error"`         // "stop" (default) or "reset".
	Format FormatConfig `yaml:"format,omitempty"` // Stream format hint for sources that need one.
	Nodes  []NodeConfig `yaml:"nodes"`            // Elements keyed by unique names.
	Links  []LinkConfig `yaml:"links"`            // Directed links between node names.
}

// FormatConfig mirrors flume.Format.
type FormatConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// NodeConfig describes one element.
type NodeConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // sine, gain, pass, mixer, wav_source, wav_sink, mp3_sink.

	// Kind specific parameters.
	Frequency float64 `yaml:"frequency,omitempty"` // sine
	Amplitude float64 `yaml:"amplitude,omitempty"` // sine
	Limit     int64   `yaml:"limit,omitempty"`     // sine, frames to generate
	Gain      float64 `yaml:"gain,omitempty"`      // gain
	Path      string  `yaml:"path,omitempty"`      // file devices
	BitDepth  int     `yaml:"bit_depth,omitempty"` // wav_sink
	BitRate   int     `yaml:"bit_rate,omitempty"`  // mp3_sink
	Quality   int     `yaml:"quality,omitempty"`   // mp3_sink
}

// LinkConfig describes one databus between two nodes.
type LinkConfig struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Bus      string `yaml:"bus"`      // ring (default), slot or pool.
	Capacity int    `yaml:"capacity"` // ring and pool; defaults to 4.
	Frames   int    `yaml:"frames"`   // pool block size; defaults to 512.
	Feedback bool   `yaml:"feedback"` // excluded from cycle detection.
}

// Load reads and parses a pipeline description from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a pipeline description and applies defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Policy: "stop"}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for i := range cfg.Links {
		if cfg.Links[i].Bus == "" {
			cfg.Links[i].Bus = "ring"
		}
		if cfg.Links[i].Capacity == 0 {
			cfg.Links[i].Capacity = 4
		}
		if cfg.Links[i].Frames == 0 {
			cfg.Links[i].Frames = 512
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the description for structural mistakes before any
// element is constructed.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("no nodes defined")
	}
	switch c.Policy {
	case "stop", "reset":
	default:
		return fmt.Errorf("unknown on_error policy %q", c.Policy)
	}
	names := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node with empty name")
		}
		if _, ok := names[n.Name]; ok {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = struct{}{}
	}
	for _, l := range c.Links {
		if _, ok := names[l.From]; !ok {
			return fmt.Errorf("link from unknown node %q", l.From)
		}
		if _, ok := names[l.To]; !ok {
			return fmt.Errorf("link to unknown node %q", l.To)
		}
		switch l.Bus {
		case "ring", "slot", "pool":
		default:
			return fmt.Errorf("unknown bus kind %q", l.Bus)
		}
	}
	return nil
}

// Build constructs a pipeline from the description.
func (c *Config) Build() (*flume.Pipeline, error) {
	format := flume.Format{
		SampleRate: c.Format.SampleRate,
		Channels:   c.Format.Channels,
		BitDepth:   flume.BitDepth(c.Format.BitDepth),
	}

	options := []flume.Option{flume.WithName(c.Name)}
	if c.Policy == "reset" {
		options = append(options, flume.WithErrorPolicy(flume.ResetOnError))
	}

	for _, n := range c.Nodes {
		elem, err := buildElement(n, format)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		options = append(options, flume.WithNode(n.Name, elem))
	}

	for _, l := range c.Links {
		bus, err := buildBus(l, format)
		if err != nil {
			return nil, fmt.Errorf("link %s->%s: %w", l.From, l.To, err)
		}
		if l.Feedback {
			options = append(options, flume.WithFeedbackLink(l.From, l.To, bus))
		} else {
			options = append(options, flume.WithLink(l.From, l.To, bus))
		}
	}

	return flume.New(options...)
}

func buildElement(n NodeConfig, format flume.Format) (flume.Element, error) {
	switch n.Kind {
	case "sine":
		return &element.Sine{
			Frequency: n.Frequency,
			Amplitude: n.Amplitude,
			Format:    format,
			Limit:     n.Limit,
		}, nil
	case "gain":
		return element.NewGain(n.Gain), nil
	case "pass":
		return element.NewPass(), nil
	case "mixer":
		return element.NewMixer(), nil
	case "wav_source":
		src, err := wavfile.NewSource(n.Path)
		if err != nil {
			return nil, err
		}
		return &element.DeviceSource{Device: src}, nil
	case "wav_sink":
		depth := flume.BitDepth(n.BitDepth)
		if depth == 0 {
			depth = flume.BitDepth16
		}
		sink, err := wavfile.NewSink(n.Path, depth)
		if err != nil {
			return nil, err
		}
		return &element.DeviceSink{Device: sink}, nil
	case "mp3_sink":
		return &element.DeviceSink{Device: mp3file.NewSink(n.Path, n.BitRate, n.Quality)}, nil
	default:
		return nil, fmt.Errorf("unknown element kind %q", n.Kind)
	}
}

func buildBus(l LinkConfig, format flume.Format) (flume.Bus, error) {
	switch l.Bus {
	case "slot":
		return databus.NewSlot(), nil
	case "ring":
		return databus.NewRing(l.Capacity), nil
	case "pool":
		if format.IsZero() {
			return nil, fmt.Errorf("pool bus requires a format section")
		}
		return databus.NewPool(format, l.Capacity, l.Frames), nil
	default:
		return nil, fmt.Errorf("unknown bus kind %q", l.Bus)
	}
}
