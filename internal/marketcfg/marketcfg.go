// Package marketcfg decodes the per-market-instance configuration schema of
// spec.md §6: clearing type/method/pricing/coupling, timing, and per-retailer
// pricing. It follows the flat, exported-struct-plus-string-enum shape the
// teacher uses for static configuration (ndrandal/feed-simulator's
// internal/symbol.Symbol), but loaded from YAML instead of hard-coded, via
// the library the pack's AlejandroRuiz99-polybot uses for structured config.
package marketcfg

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ClearingType is spec.md §4.1's clearing.type.
type ClearingType string

const (
	ExAnte ClearingType = "ex-ante"
	ExPost ClearingType = "ex-post"
)

// Method is spec.md §4.1's clearing.method.
type Method string

const (
	MethodPda       Method = "pda"
	MethodCommunity Method = "community"
)

// Pricing is spec.md §4.5's pricing policy.
type Pricing string

const (
	PricingUniform        Pricing = "uniform"
	PricingDiscriminatory Pricing = "discriminatory"
)

// Coupling is spec.md §4.10's coupling mode.
type Coupling string

const (
	CouplingNone  Coupling = ""
	CouplingAbove Coupling = "above"
	CouplingBelow Coupling = "below"
)

// Settling is spec.md §4.1's timing.settling.
type Settling string

const (
	SettlingContinuous Settling = "continuous"
	SettlingPeriodic   Settling = "periodic"
)

// Start is timing.start: either an absolute timestamp or an integer-seconds
// offset from simulation start (spec.md §4.1).
type Start struct {
	Absolute *time.Time
	OffsetS  *int64
}

// UnmarshalYAML accepts either an RFC3339 timestamp scalar or an integer
// seconds-offset scalar.
func (s *Start) UnmarshalYAML(node *yaml.Node) error {
	var asInt int64
	if err := node.Decode(&asInt); err == nil {
		s.OffsetS = &asInt
		return nil
	}

	var asTime time.Time
	if err := node.Decode(&asTime); err == nil {
		s.Absolute = &asTime
		return nil
	}

	return fmt.Errorf("marketcfg: timing.start must be an integer seconds-offset or an RFC3339 timestamp, got %q", node.Value)
}

// Resolve returns the absolute start timestamp given the simulation's own
// start instant.
func (s Start) Resolve(simStart time.Time) time.Time {
	if s.Absolute != nil {
		return *s.Absolute
	}
	if s.OffsetS != nil {
		return simStart.Add(time.Duration(*s.OffsetS) * time.Second)
	}
	return simStart
}

// Timing is spec.md §4.1's timing.* block, all durations expressed in
// seconds in the YAML and decoded into time.Duration here.
type Timing struct {
	Start     Start    `yaml:"start"`
	OpeningS  int64    `yaml:"opening"`
	FrequencyS int64   `yaml:"frequency"`
	DurationS int64    `yaml:"duration"`
	HorizonS  [2]int64 `yaml:"horizon"`
	ClosingS  int64    `yaml:"closing"`
	Settling  Settling `yaml:"settling"`
}

func (t Timing) Opening() time.Duration  { return time.Duration(t.OpeningS) * time.Second }
func (t Timing) Frequency() time.Duration { return time.Duration(t.FrequencyS) * time.Second }
func (t Timing) Duration() time.Duration { return time.Duration(t.DurationS) * time.Second }
func (t Timing) Closing() time.Duration  { return time.Duration(t.ClosingS) * time.Second }
func (t Timing) Horizon() (time.Duration, time.Duration) {
	return time.Duration(t.HorizonS[0]) * time.Second, time.Duration(t.HorizonS[1]) * time.Second
}

// Validate rejects the configuration errors named in spec.md §4.1/§7.
func (t Timing) Validate() error {
	if t.FrequencyS > t.OpeningS {
		return fmt.Errorf("marketcfg: timing.frequency (%ds) must be <= timing.opening (%ds)", t.FrequencyS, t.OpeningS)
	}
	switch t.Settling {
	case SettlingContinuous, SettlingPeriodic:
	default:
		return fmt.Errorf("marketcfg: unknown timing.settling %q", t.Settling)
	}
	return nil
}

// Clearing is spec.md §4.1/§6's clearing.* block.
type Clearing struct {
	Type     ClearingType `yaml:"type"`
	Method   Method       `yaml:"method"`
	Pricing  Pricing      `yaml:"pricing"`
	Coupling Coupling     `yaml:"coupling"`
	Timing   Timing       `yaml:"timing"`
}

// Validate rejects the configuration errors of spec.md §7 that are
// detectable from the clearing block alone.
func (c Clearing) Validate() error {
	switch c.Type {
	case ExAnte, ExPost:
	default:
		return fmt.Errorf("marketcfg: unknown clearing.type %q", c.Type)
	}
	switch c.Pricing {
	case PricingUniform, PricingDiscriminatory:
	default:
		return fmt.Errorf("marketcfg: unknown clearing.pricing %q", c.Pricing)
	}
	switch c.Coupling {
	case CouplingNone, CouplingAbove, CouplingBelow:
	default:
		return fmt.Errorf("marketcfg: unknown clearing.coupling %q", c.Coupling)
	}
	return c.Timing.Validate()
}

// PricingMethod is pricing.<retailer>.<component>.method.
type PricingMethod string

const (
	PricingMethodFixed PricingMethod = "fixed"
	PricingMethodFile  PricingMethod = "file"
)

// FixedRates holds the sell/buy price and quantity for a fixed-rate
// component (spec.md §6: pricing.<retailer>.{energy|balancing|grid|levies}.fixed).
// Quantity fields are only meaningful for the energy component; grid and
// levies components are fee rates with no associated tradable quantity.
type FixedRates struct {
	PriceSell    money32 `yaml:"price_sell"`
	PriceBuy     money32 `yaml:"price_buy"`
	QuantitySell uint64  `yaml:"quantity_sell"`
	QuantityBuy  uint64  `yaml:"quantity_buy"`
}

// money32 aliases int32 purely to keep the YAML field types self-documenting
// without importing the money package (which intentionally stays free of
// YAML schema concerns).
type money32 = int32

// ComponentPricing is one of pricing.<retailer>.{energy,balancing,grid,levies}.
type ComponentPricing struct {
	Method PricingMethod `yaml:"method"`
	Fixed  FixedRates    `yaml:"fixed"`
	File   string        `yaml:"file"`
}

// RetailerPricing is the full pricing.<retailer> block.
type RetailerPricing struct {
	Energy     ComponentPricing `yaml:"energy"`
	Balancing  ComponentPricing `yaml:"balancing"`
	Grid       ComponentPricing `yaml:"grid"`
	Levies     ComponentPricing `yaml:"levies"`
}

// Market is a single market instance's full configuration: its dimensions
// plus the clearing/timing/pricing blocks of spec.md §6. A market config
// file may define multiple retailers per market (spec §5 supplements the
// original's single-retailer limitation).
type Market struct {
	Region   string                     `yaml:"region"`
	Market   string                     `yaml:"market"`
	Name     string                     `yaml:"name"`
	Clearing Clearing                   `yaml:"clearing"`
	Pricing  map[string]RetailerPricing `yaml:"pricing"`
}

// Validate checks the market configuration per spec.md §7 "Configuration
// error" taxonomy, naming the offending market in the diagnostic.
func (m Market) Validate() error {
	if err := m.Clearing.Validate(); err != nil {
		return fmt.Errorf("market %s/%s/%s: %w", m.Region, m.Market, m.Name, err)
	}
	for retailer, p := range m.Pricing {
		for _, comp := range []struct {
			name string
			cfg  ComponentPricing
		}{
			{"energy", p.Energy}, {"balancing", p.Balancing}, {"grid", p.Grid}, {"levies", p.Levies},
		} {
			switch comp.cfg.Method {
			case PricingMethodFixed, PricingMethodFile, "":
			default:
				return fmt.Errorf("market %s/%s/%s: retailer %s: unknown pricing method %q for %s",
					m.Region, m.Market, m.Name, retailer, comp.cfg.Method, comp.name)
			}
		}
	}
	return nil
}

// Load decodes a market configuration document from YAML.
func Load(data []byte) (Market, error) {
	var m Market
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Market{}, fmt.Errorf("marketcfg: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Market{}, err
	}
	return m, nil
}
