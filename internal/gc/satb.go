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

// Only field writes may dirty the card of the object header, everything else
// targets the exact written address.
var _SATBPrecise = map[ir.BarrierType]bool {
    ir.BarrierField            : false,
    ir.BarrierArray            : true,
    ir.BarrierUnknown          : true,
    ir.BarrierNoKeepaliveWrite : true,
}

// RegionalSATB is the policy for a region based collector with concurrent
// snapshot-at-the-beginning marking. Overwritten references are logged by a
// pre-write barrier, cross region references are recorded by a post-write
// barrier.
type RegionalSATB struct {
    md        meta.Provider
    deferInit bool
}

func NewRegionalSATB(md meta.Provider, deferInit bool) *RegionalSATB {
    return &RegionalSATB {
        md        : md,
        deferInit : deferInit,
    }
}

func (self *RegionalSATB) Name() string {
    return "satb"
}

func (self *RegionalSATB) FieldReadBarrierType(f *meta.Field, kind meta.Kind) ir.BarrierType {
    if kind == meta.Object && f == self.md.ReferentField() {
        return ir.BarrierReferenceGet
    } else {
        return ir.BarrierNone
    }
}

func (self *RegionalSATB) FieldWriteBarrierType(_ *meta.Field, kind meta.Kind) ir.BarrierType {
    return defaultFieldWriteBarrierType(kind)
}

func (self *RegionalSATB) ArrayWriteBarrierType(kind meta.Kind) ir.BarrierType {
    return defaultArrayWriteBarrierType(kind)
}

// ReadBarrierType classifies object loads through untyped locations. If the
// base might be a Reference and the offset might be the referent offset, the
// load could be a hidden referent read.
func (self *RegionalSATB) ReadBarrierType(g *ir.Graph, loc ir.LocationIdentity, addr ir.ID, load ir.Stamp) ir.BarrierType {
    if !loc.IsUnknown() || !load.IsObject() {
        return ir.BarrierNone
    }

    /* must be an object base plus an offset */
    ea, ok := g.Node(addr).(*ir.OffsetAddress)
    if !ok || !IsObjectValue(g, ea.Base) {
        return ir.BarrierNone
    }

    /* the base type must be related to the Reference type */
    if vt := g.StampOf(ea.Base).Type; vt != nil && !self.isRelatedToReference(vt) {
        return ir.BarrierNone
    }

    /* a constant offset must be the referent offset */
    if c, ok := g.Node(ea.Offset).(*ir.Constant); ok && c.Value != self.md.ReferentField().Offset {
        return ir.BarrierNone
    } else {
        return ir.BarrierUnknown
    }
}

func (self *RegionalSATB) isRelatedToReference(vt *meta.Type) bool {
    rt := self.md.ReferenceType()
    return rt.IsAssignableFrom(vt) || vt.IsAssignableFrom(rt)
}

func (self *RegionalSATB) WriteBarrierType(g *ir.Graph, store *ir.RawStore) ir.BarrierType {
    return defaultWriteBarrierType(self, g, store)
}

func (self *RegionalSATB) ReadWriteBarrier(g *ir.Graph, object ir.ID, value ir.ID) ir.BarrierType {
    return defaultReadWriteBarrier(g, self.md, object, value)
}

func (self *RegionalSATB) MayNeedPreWriteBarrier(kind meta.Kind) bool {
    return kind == meta.Object
}

func (self *RegionalSATB) PostAllocationInitBarrier(bt ir.BarrierType) ir.BarrierType {
    return bt
}

func (self *RegionalSATB) ShouldAddBarriersInStage(stage opts.Stage) bool {
    return defaultShouldAddBarriersInStage(stage)
}

func (self *RegionalSATB) AddBarriers(g *ir.Graph, id ir.ID) {
    switch v := g.Node(id).(type) {
        case *ir.Read               : self.addReadBarrier(g, id, v)
        case *ir.Write              : self.addWriteBarriers(g, id, v.Value, ir.NoNode, true)
        case *ir.CompareAndSwap     : self.addWriteBarriers(g, id, v.NewValue, v.Expected, false)
        case *ir.AtomicReadAndWrite : self.addWriteBarriers(g, id, v.NewValue, ir.NoNode, true)
        case *ir.RawStore           : self.addWriteBarriers(g, id, v.Value, ir.NoNode, true)
        case *ir.RangeWrite         : self.addRangeBarriers(g, id, v)
        default                     : panic(withPolicy(self, ir.Missed(v, "not an access node")))
    }
}

func (self *RegionalSATB) addReadBarrier(g *ir.Graph, id ir.ID, v *ir.Read) {
    switch bt := v.BarrierType(); bt {
        case ir.BarrierNone: {
            return
        }

        /* possible referent reads */
        case ir.BarrierUnknown, ir.BarrierReferenceGet, ir.BarrierWeakRefersTo, ir.BarrierPhantomRefersTo: {
            break
        }

        /* nothing else is expected on a read */
        default: {
            panic(withPolicy(self, ir.Missed(v, "unexpected barrier type %s for a read", bt)))
        }
    }

    /* only object loads keep anything alive */
    if !v.LoadStamp.IsObject() || self.hasPostBarrier(g, id) {
        return
    }

    /* log the loaded referent after the read */
    g.AddAfterFixed(id, g.Add(&ir.ReferentRead {
        Addr     : v.Addr,
        Expected : id,
    }))

    /* update the counter */
    countInserted()
}

// writeRequiresPostBarrier tells whether the store of `value` may create a
// cross region reference.
func (self *RegionalSATB) writeRequiresPostBarrier(g *ir.Graph, id ir.ID, value ir.ID) bool {
    if IsNullConstant(g, value) {
        return false
    } else if self.deferInit && IsWriteToNewObject(g, id) {
        return false
    } else {
        return true
    }
}

func (self *RegionalSATB) addWriteBarriers(g *ir.Graph, id ir.ID, value ir.ID, expected ir.ID, doLoad bool) {
    acc := g.Access(id)
    bt := acc.BarrierType()

    /* check the barrier type */
    switch bt {
        case ir.BarrierNone: {
            return
        }

        /* barriered stores */
        case ir.BarrierField, ir.BarrierArray, ir.BarrierUnknown, ir.BarrierNoKeepaliveWrite: {
            break
        }

        /* reads and init-only types cannot reach here */
        default: {
            panic(withPolicy(self, ir.Missed(g.Node(id), "unexpected barrier type %s for a write", bt)))
        }
    }

    /* Phase 1: log the previous value, the old value of an initializing write is always null */
    if !acc.Location().IsInit() && bt != ir.BarrierNoKeepaliveWrite && !self.hasPreBarrier(g, id) {
        self.addPreBarrier(g, id, expected, doLoad)
    }

    /* Phase 2: record the store */
    if !self.writeRequiresPostBarrier(g, id, value) {
        countElided()
    } else if !self.hasPostBarrier(g, id) {
        self.addPostBarrier(g, id, value, bt)
    }
}

func (self *RegionalSATB) addPreBarrier(g *ir.Graph, id ir.ID, expected ir.ID, doLoad bool) {
    acc := g.Access(id)
    pb := self.newPreWrite(g, id, expected, doLoad, acc.UsedAsNullCheck())

    /* the barrier performs the null check now */
    acc.SetUsedAsNullCheck(false)
    g.AddBeforeFixed(id, g.Add(pb))
    countInserted()
}

// newPreWrite builds the pre barrier for the access `id`. The barrier either
// loads the old value itself or logs the known `expected` value, and it can
// only carry the null check of the access if it performs the load.
func (self *RegionalSATB) newPreWrite(g *ir.Graph, id ir.ID, expected ir.ID, doLoad bool, nullCheck bool) *ir.PreWrite {
    if doLoad != (expected == ir.NoNode) {
        panic(withPolicy(self, ir.Invariant(g.Node(id), "malformed pre barrier: load=%t expected=%s", doLoad, expected)))
    } else if nullCheck && !doLoad {
        panic(withPolicy(self, ir.Invariant(g.Node(id), "pre barrier without a load cannot be the null check")))
    } else {
        return &ir.PreWrite{Addr: g.Access(id).Address(), Expected: expected, DoLoad: doLoad, NullCheck: nullCheck}
    }
}

func (self *RegionalSATB) addPostBarrier(g *ir.Graph, id ir.ID, value ir.ID, bt ir.BarrierType) {
    addr := g.Access(id).Address()
    precise := _SATBPrecise[bt]

    /* construct the post barrier */
    pb := &ir.PostWrite {
        Addr       : addr,
        Value      : value,
        Base       : ir.NoNode,
        AlwaysNull : g.StampOf(value).AlwaysNull,
        Precise    : precise,
    }

    /* only field writes name the base object */
    if !precise {
        pb.Base = g.AddressBase(addr)
    }

    /* add after the store */
    g.AddAfterFixed(id, g.Add(pb))
    countInserted()
}

func (self *RegionalSATB) addRangeBarriers(g *ir.Graph, id ir.ID, v *ir.RangeWrite) {
    if v.BarrierType() == ir.BarrierNone || !v.WritesObjectArray() {
        return
    }

    /* nothing is written */
    if isZeroConstant(g, v.Length) {
        countElided()
        return
    }

    /* log the overwritten elements */
    if !v.IsInitialization() && !self.hasPreBarrier(g, id) {
        g.AddBeforeFixed(id, g.Add(&ir.RangePreWrite{Addr: v.Addr, Length: v.Length, Stride: v.Stride}))
        countInserted()
    }

    /* record the elements */
    if self.deferInit && IsWriteToNewObject(g, id) {
        countElided()
    } else if !self.hasPostBarrier(g, id) {
        g.AddAfterFixed(id, g.Add(&ir.RangePostWrite{Addr: v.Addr, Length: v.Length, Stride: v.Stride}))
        countInserted()
    }
}

func (self *RegionalSATB) hasPreBarrier(g *ir.Graph, id ir.ID) bool {
    if p := g.Predecessor(id); p == ir.NoNode {
        return false
    } else if b, ok := g.Node(p).(ir.Barrier); !ok {
        return false
    } else {
        return b.Kind() == ir.PreBarrier && self.IsMatchingBarrier(g, id, b)
    }
}

func (self *RegionalSATB) hasPostBarrier(g *ir.Graph, id ir.ID) bool {
    if n := g.Next(id); n == ir.NoNode {
        return false
    } else if b, ok := g.Node(n).(ir.Barrier); !ok {
        return false
    } else if _, rr := b.(*ir.ReferentRead); !rr && b.Kind() != ir.PostBarrier {
        return false
    } else {
        return self.IsMatchingBarrier(g, id, b)
    }
}

// IsMatchingBarrier reports whether `b` is the barrier this policy inserts
// for the access `id`.
func (self *RegionalSATB) IsMatchingBarrier(g *ir.Graph, id ir.ID, b ir.Barrier) bool {
    acc := g.Access(id)
    addr := acc.Address()

    /* the barrier must share the address */
    if b.Address() != addr {
        return false
    }

    /* check the barrier shape */
    switch v := b.(type) {
        case *ir.PreWrite       : return !isRange(acc)
        case *ir.PostWrite      : return !isRange(acc)
        case *ir.ReferentRead   : return v.Expected == id
        case *ir.RangePreWrite  : return isMatchingRange(acc, v.Length, v.Stride)
        case *ir.RangePostWrite : return isMatchingRange(acc, v.Length, v.Stride)
        default                 : return false
    }
}

func isRange(acc ir.Access) bool {
    _, ok := acc.(*ir.RangeWrite)
    return ok
}
