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

package gc

import (
    `github.com/cloudwego/mbarrier/internal/opts`
    `github.com/cloudwego/mbarrier/ir`
    `github.com/cloudwego/mbarrier/meta`
)

// Policy decides which barrier every heap access needs under one collector
// algorithm, and places the barrier nodes into the graph.
//
// Policies only hold read-only metadata, a single policy instance can serve
// any number of concurrent compilations.
type Policy interface {
    Name() string

    FieldReadBarrierType(f *meta.Field, kind meta.Kind) ir.BarrierType
    FieldWriteBarrierType(f *meta.Field, kind meta.Kind) ir.BarrierType
    ArrayWriteBarrierType(kind meta.Kind) ir.BarrierType
    ReadBarrierType(g *ir.Graph, loc ir.LocationIdentity, addr ir.ID, load ir.Stamp) ir.BarrierType
    WriteBarrierType(g *ir.Graph, store *ir.RawStore) ir.BarrierType
    ReadWriteBarrier(g *ir.Graph, object ir.ID, value ir.ID) ir.BarrierType

    // AddBarriers places the barriers required by the access `id`. Accesses
    // that already carry their barriers are left untouched.
    AddBarriers(g *ir.Graph, id ir.ID)

    MayNeedPreWriteBarrier(kind meta.Kind) bool
    PostAllocationInitBarrier(bt ir.BarrierType) ir.BarrierType
    ShouldAddBarriersInStage(stage opts.Stage) bool
}

// NewPolicy creates the policy for `collector`. With `deferInit`, writes into
// the most recently allocated object are left without barriers because the
// allocator hands out objects that need none.
func NewPolicy(collector opts.Collector, md meta.Provider, deferInit bool) Policy {
    switch collector {
        case opts.CollectorNone    : return NewNoBarrier()
        case opts.CollectorCard    : return NewCardMarking(md, deferInit)
        case opts.CollectorSATB    : return NewRegionalSATB(md, deferInit)
        case opts.CollectorColored : return NewConcurrentColored(md)
        default                    : panic("gc: invalid collector: " + string(collector))
    }
}

/** Shared Defaults **/

func defaultFieldWriteBarrierType(kind meta.Kind) ir.BarrierType {
    if kind == meta.Object {
        return ir.BarrierField
    } else {
        return ir.BarrierNone
    }
}

func defaultArrayWriteBarrierType(kind meta.Kind) ir.BarrierType {
    if kind == meta.Object {
        return ir.BarrierArray
    } else {
        return ir.BarrierNone
    }
}

func defaultShouldAddBarriersInStage(stage opts.Stage) bool {
    return stage == opts.StageLowTier
}

// classifyBase tells whether an object base is known to be an array, known
// not to be one, or could be either.
func classifyBase(g *ir.Graph, md meta.Provider, base ir.ID) ir.BarrierType {
    vt := g.StampOf(base).Type

    /* check the static type of the base */
    if vt != nil && vt.IsArray() {
        return ir.BarrierArray
    } else if vt == nil || vt.IsAssignableFrom(md.ObjectArrayType()) {
        return ir.BarrierUnknown
    } else {
        return ir.BarrierField
    }
}

func defaultReadWriteBarrier(g *ir.Graph, md meta.Provider, object ir.ID, value ir.ID) ir.BarrierType {
    if IsObjectValue(g, value) && IsObjectValue(g, object) {
        return classifyBase(g, md, object)
    } else {
        return ir.BarrierNone
    }
}

func defaultWriteBarrierType(p Policy, g *ir.Graph, store *ir.RawStore) ir.BarrierType {
    if !store.NeedsBarrier || IsNullConstant(g, store.Value) {
        return ir.BarrierNone
    } else {
        return p.ReadWriteBarrier(g, g.AddressBase(store.Addr), store.Value)
    }
}

/** Shared Predicates **/

// IsNullConstant reports whether `id` is the null object constant.
func IsNullConstant(g *ir.Graph, id ir.ID) bool {
    if id == ir.NoNode {
        return false
    } else if c, ok := g.Node(id).(*ir.Constant); !ok {
        return false
    } else {
        return c.Null
    }
}

// IsObjectValue reports whether `id` produces an object reference.
func IsObjectValue(g *ir.Graph, id ir.ID) bool {
    return g.StampOf(id).IsObject()
}

func isZeroConstant(g *ir.Graph, id ir.ID) bool {
    if id == ir.NoNode {
        return false
    } else if c, ok := g.Node(id).(*ir.Constant); !ok {
        return false
    } else {
        return !c.S.IsObject() && c.Value == 0
    }
}

// IsWriteToNewObject reports whether the access `id` is an initializing write
// into the first allocation found walking its predecessors backwards. A merge
// ends the walk since it has no single predecessor.
func IsWriteToNewObject(g *ir.Graph, id ir.ID) bool {
    acc := g.Access(id)
    obj := g.AddressBase(acc.Address())

    /* only initializing writes qualify */
    if !acc.Location().IsInit() {
        return false
    }

    /* walk backwards until the first allocation */
    for p := g.Predecessor(id); p != ir.NoNode; p = g.Predecessor(p) {
        if _, ok := g.Node(p).(*ir.Allocation); ok {
            return p == obj
        }
    }

    /* no allocation on this path */
    return false
}

func withPolicy(p Policy, f *ir.Fault) *ir.Fault {
    f.Policy = p.Name()
    return f
}

// checkReadBarrier accepts the barrier types that need no insertion for a
// plain read under a collector without load barriers.
func checkReadBarrier(p Policy, g *ir.Graph, id ir.ID, bt ir.BarrierType) {
    if bt != ir.BarrierNone && !bt.IsReferentRead() {
        panic(withPolicy(p, ir.Missed(g.Node(id), "unexpected barrier type %s for a read", bt)))
    }
}
