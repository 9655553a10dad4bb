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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/mbarrier/internal/gc"
)

// A Stats records statistics about the barrier passes.
type Stats struct {
	Units    UnitStats
	Barriers BarrierStats
}

// A UnitStats records how many compilation units went through the passes.
type UnitStats struct {
	Done    int
	Aborted int
}

// A BarrierStats records the barriers the passes have dealt with.
type BarrierStats struct {
	Inserted int
	Elided   int
	Verified int
}

// GetStats returns statistics of the barrier passes.
func GetStats() Stats {
	return Stats{
		Units: UnitStats{
			Done:    int(atomic.LoadUint64(&gc.UnitCount)),
			Aborted: int(atomic.LoadUint64(&gc.FaultCount)),
		},
		Barriers: BarrierStats{
			Inserted: int(atomic.LoadUint64(&gc.InsertedCount)),
			Elided:   int(atomic.LoadUint64(&gc.ElidedCount)),
			Verified: int(atomic.LoadUint64(&gc.VerifiedCount)),
		},
	}
}
