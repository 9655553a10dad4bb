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

// Package mbarrier places the GC memory barriers of JIT compilation units.
//
// For every heap access of a compilation unit, the barrier policy of the
// selected collector decides which barrier the access needs, and the barrier
// nodes are spliced into the graph for the lowering phase to emit.
package mbarrier

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/cloudwego/mbarrier/internal/gc"
	"github.com/cloudwego/mbarrier/internal/opts"
	"github.com/cloudwego/mbarrier/ir"
	"github.com/cloudwego/mbarrier/meta"
)

type _Unit struct {
	options opts.Options
	policy  gc.Policy
	passes  []gc.PassDescriptor
}

func newUnit(md meta.Provider, options []Option) _Unit {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	p := gc.NewPolicy(o.Collector, md, o.DeferInitBarriers)
	return _Unit{options: o, policy: p, passes: gc.NewPasses(p, md, o)}
}

// compile runs the passes over g. Faults abort only this unit and are returned,
// any other panic is a bug and keeps unwinding.
func (self _Unit) compile(g *ir.Graph) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if f, ok := v.(*ir.Fault); ok {
				atomic.AddUint64(&gc.FaultCount, 1)
				err = f
			} else {
				panic(v)
			}
		}
	}()
	gc.Compile(g, self.passes)
	atomic.AddUint64(&gc.UnitCount, 1)
	return nil
}

// Insert decides the barrier type of every heap access in g and inserts the
// barriers they need. A *Fault is returned if the graph cannot be handled by
// the selected collector, in which case g must be discarded.
func Insert(g *ir.Graph, md meta.Provider, options ...Option) error {
	return newUnit(md, options).compile(g)
}

// InsertAll runs Insert over independent compilation units concurrently, all
// of them sharing md and a single policy. The error of units[i] is returned
// in slot i. A panic that is not a Fault is re-raised once every unit is done.
func InsertAll(units []*ir.Graph, md meta.Provider, options ...Option) []error {
	var bug interface{}
	var mux sync.Mutex
	var wg sync.WaitGroup

	/* one pool per batch */
	u := newUnit(md, options)
	ret := make([]error, len(units))
	pool := gopool.NewPool("mbarrier", int32(u.options.Workers), gopool.NewConfig())

	/* dispatch every unit */
	for i, g := range units {
		i, g := i, g
		wg.Add(1)

		/* compile in the pool */
		pool.CtxGo(context.Background(), func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					mux.Lock()
					if bug == nil {
						bug = v
					}
					mux.Unlock()
				}
			}()

			/* faults only abort this unit */
			if ret[i] = u.compile(g); ret[i] != nil {
				log.Printf("mbarrier: compilation unit %q aborted: %v", g.Name, ret[i])
			}
		})
	}

	/* wait for all the units */
	wg.Wait()
	if bug != nil {
		panic(bug)
	}

	/* all done */
	return ret
}
