/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mbarrier

import (
	"fmt"

	"github.com/cloudwego/mbarrier/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// Collector selects the barrier policy of a collector algorithm.
type Collector = opts.Collector

const (
	CollectorNone    = opts.CollectorNone
	CollectorCard    = opts.CollectorCard
	CollectorSATB    = opts.CollectorSATB
	CollectorColored = opts.CollectorColored
)

// Stage is the compilation stage the barrier passes are invoked in.
type Stage = opts.Stage

const (
	StageHighTier = opts.StageHighTier
	StageMidTier  = opts.StageMidTier
	StageLowTier  = opts.StageLowTier
)

// WithCollector selects the collector whose barriers are inserted.
//
// The default value of this option is "card".
func WithCollector(c Collector) Option {
	if !c.IsValid() {
		panic(fmt.Sprintf("mbarrier: invalid collector: %q", string(c)))
	} else {
		return func(o *opts.Options) { o.Collector = c }
	}
}

// WithStage tells the passes which compilation stage they are invoked in.
// Barriers are only placed in the low tier, right before machine independent
// lowering, any other stage leaves the graph untouched.
//
// The default value of this option is StageLowTier.
func WithStage(s Stage) Option {
	if s > StageLowTier {
		panic(fmt.Sprintf("mbarrier: invalid stage: %d", s))
	} else {
		return func(o *opts.Options) { o.Stage = s }
	}
}

// WithVerify runs the barrier verifier after insertion, for the collectors
// that provide one.
//
// The default value of this option is "false".
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

// WithDeferInitBarriers skips the barriers of initializing stores into the
// object allocated right before them.
//
// Only enable this if the allocator guarantees that fresh objects need no
// barriers.
//
// The default value of this option is "false".
func WithDeferInitBarriers(v bool) Option {
	return func(o *opts.Options) { o.DeferInitBarriers = v }
}

// WithWorkers limits how many compilation units InsertAll processes at the
// same time.
//
// The default value of this option is "4".
func WithWorkers(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("mbarrier: invalid worker count: %d", n))
	} else {
		return func(o *opts.Options) { o.Workers = n }
	}
}

// SetDefaultCollector sets the default collector for all compilations from
// now on.
//
// This value can also be configured with the `MBARRIER_COLLECTOR` environment
// variable.
//
// Returns the old opts.DefaultCollector value.
func SetDefaultCollector(c Collector) Collector {
	if !c.IsValid() {
		panic(fmt.Sprintf("mbarrier: invalid collector: %q", string(c)))
	}
	c, opts.DefaultCollector = opts.DefaultCollector, c
	return c
}

// SetDefaultWorkers sets the default worker count of InsertAll from now on.
//
// This value can also be configured with the `MBARRIER_WORKERS` environment
// variable.
//
// Returns the old opts.Workers value.
func SetDefaultWorkers(n int) int {
	if n < 1 {
		panic(fmt.Sprintf("mbarrier: invalid worker count: %d", n))
	}
	n, opts.Workers = opts.Workers, n
	return n
}
