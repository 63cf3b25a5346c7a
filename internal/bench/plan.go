// Package bench runs benchmark sweeps over the accumulation strategies and
// reports their timings.
package bench

import (
	"fmt"

	"github.com/histobench/internal/accumulator"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
)

// RunConfig is one point of a sweep. It is immutable during a run.
type RunConfig struct {
	Strategy  accumulator.Strategy `json:"strategy"`
	Policy    parallel.Policy      `json:"policy"`
	Workers   int                  `json:"threads"`
	ChunkSize int                  `json:"chunk_size"`
}

// Options returns the schedule options of the configuration.
func (c RunConfig) Options() parallel.Options {
	return parallel.Options{Workers: c.Workers, Policy: c.Policy, ChunkSize: c.ChunkSize}
}

// Key identifies the configuration, e.g. "critical/dynamic/t8/c32768".
func (c RunConfig) Key() string {
	if c.Policy.Chunked() {
		return fmt.Sprintf("%s/%s/t%d/c%d", c.Strategy, c.Policy, c.Workers, c.ChunkSize)
	}
	return fmt.Sprintf("%s/%s/t%d", c.Strategy, c.Policy, c.Workers)
}

// Block is the thread-count loop for one chunk size.
type Block struct {
	ChunkSize int
	Configs   []RunConfig
}

// Section groups the blocks of one strategy under one policy.
type Section struct {
	Strategy accumulator.Strategy
	Policy   parallel.Policy
	Blocks   []Block
}

// Plan is the ordered list of sections a sweep executes.
type Plan struct {
	Sections []Section
}

// PlanParams describes a sweep grid.
type PlanParams struct {
	Strategies   []accumulator.Strategy
	Policies     []parallel.Policy
	ThreadCounts []int
	ChunkSizes   []int
}

// NewPlan expands the grid. For every strategy, in order, one section per
// policy is emitted: the static section has a single block without chunk
// size, chunked sections have one block per chunk size. Each block runs
// every thread count in order.
func NewPlan(p PlanParams) (*Plan, error) {
	if len(p.Strategies) == 0 {
		return nil, apperrors.InvalidConfig("at least one strategy is required")
	}
	if len(p.Policies) == 0 {
		return nil, apperrors.InvalidConfig("at least one policy is required")
	}
	if len(p.ThreadCounts) == 0 {
		return nil, apperrors.InvalidConfig("at least one thread count is required")
	}
	for _, t := range p.ThreadCounts {
		if t < 1 {
			return nil, apperrors.InvalidConfig("thread count must be at least 1, got %d", t)
		}
	}

	plan := &Plan{}
	for _, s := range p.Strategies {
		if s == accumulator.StrategySequential {
			return nil, apperrors.InvalidConfig("the sequential strategy has its own plan")
		}
		if _, err := accumulator.New(s); err != nil {
			return nil, err
		}
		for _, policy := range p.Policies {
			sec := Section{Strategy: s, Policy: policy}
			switch {
			case policy == parallel.PolicyStatic:
				sec.Blocks = []Block{block(s, policy, 0, p.ThreadCounts)}
			case policy.Chunked():
				if len(p.ChunkSizes) == 0 {
					return nil, apperrors.InvalidConfig("policy %s needs at least one chunk size", policy)
				}
				for _, c := range p.ChunkSizes {
					if c < 1 {
						return nil, apperrors.InvalidConfig("chunk size must be at least 1, got %d", c)
					}
					sec.Blocks = append(sec.Blocks, block(s, policy, c, p.ThreadCounts))
				}
			default:
				return nil, apperrors.InvalidConfig("unknown policy: %q", policy)
			}
			plan.Sections = append(plan.Sections, sec)
		}
	}
	return plan, nil
}

// SequentialPlan returns the single-configuration plan of the sequential
// baseline.
func SequentialPlan() *Plan {
	return &Plan{Sections: []Section{{
		Strategy: accumulator.StrategySequential,
		Policy:   parallel.PolicyStatic,
		Blocks: []Block{{Configs: []RunConfig{{
			Strategy: accumulator.StrategySequential,
			Policy:   parallel.PolicyStatic,
			Workers:  1,
		}}}},
	}}}
}

func block(s accumulator.Strategy, policy parallel.Policy, chunk int, threads []int) Block {
	b := Block{ChunkSize: chunk, Configs: make([]RunConfig, 0, len(threads))}
	for _, t := range threads {
		b.Configs = append(b.Configs, RunConfig{Strategy: s, Policy: policy, Workers: t, ChunkSize: chunk})
	}
	return b
}

// Configs returns every configuration in execution order.
func (p *Plan) Configs() []RunConfig {
	var out []RunConfig
	for _, sec := range p.Sections {
		for _, b := range sec.Blocks {
			out = append(out, b.Configs...)
		}
	}
	return out
}

// Len returns the number of configurations.
func (p *Plan) Len() int {
	n := 0
	for _, sec := range p.Sections {
		for _, b := range sec.Blocks {
			n += len(b.Configs)
		}
	}
	return n
}
