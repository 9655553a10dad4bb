/*
 * Copyright 2022 ByteDance Inc.
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

package opts

// Collector selects the barrier policy.
type Collector string

const (
	CollectorNone    Collector = "none"
	CollectorCard    Collector = "card"
	CollectorSATB    Collector = "satb"
	CollectorColored Collector = "colored"
)

func (self Collector) IsValid() bool {
	switch self {
	case CollectorNone, CollectorCard, CollectorSATB, CollectorColored:
		return true
	default:
		return false
	}
}

// Stage is the compilation stage a barrier pass runs in.
type Stage uint8

const (
	StageHighTier Stage = iota
	StageMidTier
	StageLowTier
)

func (self Stage) String() string {
	switch self {
	case StageHighTier:
		return "high-tier"
	case StageMidTier:
		return "mid-tier"
	case StageLowTier:
		return "low-tier"
	default:
		return "invalid-stage"
	}
}

type Options struct {
	Collector         Collector
	Stage             Stage
	Verify            bool
	DeferInitBarriers bool
	Workers           int
}

func GetDefaultOptions() Options {
	return Options{
		Collector:         DefaultCollector,
		Stage:             StageLowTier,
		Verify:            Verify,
		DeferInitBarriers: DeferInitBarriers,
		Workers:           Workers,
	}
}
