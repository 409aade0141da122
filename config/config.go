// Package config builds pipeline modules from a declarative JSON
// description, so chain layouts can live in a file instead of code.
// Every module option is either a literal value or a control binding;
// both unmarshal from the same field.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"midifx/fx"
	"midifx/param"
	"midifx/pipeline"
)

// ChainConfig describes the module section of a chain. Sources and
// sinks are wired in code; they depend on transports this module does
// not provide.
type ChainConfig struct {
	Modules []ModuleConfig `json:"modules"`
}

// ModuleConfig describes one module: its kind, an optional on/off gate
// and the kind-specific options.
type ModuleConfig struct {
	Kind    string            `json:"kind"` // delay, bufferdelay, pitchshift, mirror, velocityshift, dropout, monitor
	On      *Option           `json:"on,omitempty"`
	Trigger *TriggerConfig    `json:"trigger,omitempty"` // bufferdelay only
	Options map[string]Option `json:"options,omitempty"`
}

// TriggerConfig is the control change that fires a buffer delay.
type TriggerConfig struct {
	Controller uint8 `json:"controller"`
	Channel    uint8 `json:"channel"`
	Value      uint8 `json:"value"`
}

// Option is a module option: a literal number, a literal bool, or a
// control binding object.
type Option struct {
	Number  *float64
	Bool    *bool
	Binding *Binding
}

// Binding describes a controllable option: the address it listens on,
// its range, and an optional drift strategy.
type Binding struct {
	Controller  uint8    `json:"controller"`
	Channel     uint8    `json:"channel"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Initial     *float64 `json:"initial,omitempty"`
	Drift       string   `json:"drift,omitempty"` // "", uniform, exponential, coin
	Median      float64  `json:"median,omitempty"`
	Probability float64  `json:"probability,omitempty"`
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		o.Number = &f
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		o.Bool = &b
		return nil
	}
	var bind Binding
	if err := json.Unmarshal(data, &bind); err != nil {
		return fmt.Errorf("option must be a number, bool or binding: %w", err)
	}
	o.Binding = &bind
	return nil
}

// Load reads a chain config from a JSON file.
func Load(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ChainConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &pipeline.ConfigError{Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return &cfg, nil
}

// Build materializes the configured modules, in order. The returned
// slice slots between a source and sink in pipeline.NewChain.
func (c *ChainConfig) Build(log *slog.Logger) ([]*pipeline.Module, error) {
	if log == nil {
		log = slog.Default()
	}
	var modules []*pipeline.Module
	for i, mc := range c.Modules {
		effect, err := buildEffect(mc, log)
		if err != nil {
			return nil, &pipeline.ConfigError{Msg: fmt.Sprintf("module %d (%s): %v", i, mc.Kind, err)}
		}
		var opts []pipeline.ModuleOption
		if mc.On != nil {
			sw, err := buildSwitch("on", *mc.On)
			if err != nil {
				return nil, &pipeline.ConfigError{Msg: fmt.Sprintf("module %d (%s): on: %v", i, mc.Kind, err)}
			}
			opts = append(opts, pipeline.WithGate(sw))
		}
		modules = append(modules, pipeline.NewModule(effect, opts...))
	}
	return modules, nil
}

func buildEffect(mc ModuleConfig, log *slog.Logger) (pipeline.Effect, error) {
	switch mc.Kind {
	case "delay":
		amount, err := buildValue("amount", mc.Options)
		if err != nil {
			return nil, err
		}
		return fx.NewDelay(amount), nil
	case "bufferdelay":
		if mc.Trigger == nil {
			return nil, fmt.Errorf("bufferdelay needs a trigger")
		}
		gap, err := buildValue("gap", mc.Options)
		if err != nil {
			return nil, err
		}
		addr := param.Address{Controller: mc.Trigger.Controller, Channel: mc.Trigger.Channel}
		return fx.NewBufferDelay(addr, mc.Trigger.Value, gap), nil
	case "pitchshift":
		amount, err := buildValue("amount", mc.Options)
		if err != nil {
			return nil, err
		}
		return fx.NewPitchShift(amount), nil
	case "mirror":
		center, err := buildValue("center", mc.Options)
		if err != nil {
			return nil, err
		}
		return fx.NewMirror(center), nil
	case "velocityshift":
		amount, err := buildValue("amount", mc.Options)
		if err != nil {
			return nil, err
		}
		return fx.NewVelocityShift(amount), nil
	case "dropout":
		amount, err := buildValue("amount", mc.Options)
		if err != nil {
			return nil, err
		}
		return fx.NewDropout(amount), nil
	case "monitor":
		channel := -1
		if opt, ok := mc.Options["channel"]; ok && opt.Number != nil {
			channel = int(*opt.Number)
		}
		return fx.NewMonitor(log, channel), nil
	}
	return nil, fmt.Errorf("unknown module kind %q", mc.Kind)
}

// buildValue turns a named option into a param value: a literal number
// becomes a constant, a binding becomes a bound (possibly drifting)
// value, and a missing option returns nil so the effect applies its
// default.
func buildValue(name string, options map[string]Option) (*param.Value, error) {
	opt, ok := options[name]
	if !ok {
		return nil, nil
	}
	if opt.Number != nil {
		return param.Const(*opt.Number), nil
	}
	if opt.Binding == nil {
		return nil, fmt.Errorf("%s: expected a number or binding", name)
	}
	b := opt.Binding
	initial := b.Min
	if b.Initial != nil {
		initial = *b.Initial
	}
	v := param.NewValue(name, initial, b.Min, b.Max).Bind(b.Controller, b.Channel)
	drift, err := buildDrift(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if drift != nil {
		v = v.WithDrift(drift)
	}
	return v, nil
}

func buildSwitch(name string, opt Option) (*param.Switch, error) {
	if opt.Bool != nil {
		return param.ConstSwitch(*opt.Bool), nil
	}
	if opt.Binding == nil {
		return nil, fmt.Errorf("%s: expected a bool or binding", name)
	}
	b := opt.Binding
	initial := b.Initial != nil && *b.Initial != 0
	sw := param.NewSwitch(name, initial).Bind(b.Controller, b.Channel)
	drift, err := buildDrift(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if drift != nil {
		sw = sw.WithDrift(drift)
	}
	return sw, nil
}

func buildDrift(b *Binding) (param.Drift, error) {
	switch b.Drift {
	case "":
		return nil, nil
	case "uniform":
		return param.UniformDrift{}, nil
	case "exponential":
		return param.ExponentialDrift{Median: b.Median}, nil
	case "coin":
		return param.CoinDrift{Probability: b.Probability}, nil
	}
	return nil, fmt.Errorf("unknown drift %q", b.Drift)
}
