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
    `sync/atomic`

    `github.com/cloudwego/mbarrier/internal/opts`
    `github.com/cloudwego/mbarrier/ir`
    `github.com/cloudwego/mbarrier/meta`
)

// ConcurrentColored is the policy for a concurrent collector with colored
// pointers. Every reference loaded from the heap must be healed, so the
// barriers live entirely in the lowered accesses and nothing is spliced into
// the graph.
type ConcurrentColored struct {
    md meta.Provider
}

func NewConcurrentColored(md meta.Provider) *ConcurrentColored {
    return &ConcurrentColored{md: md}
}

func (self *ConcurrentColored) Name() string {
    return "colored"
}

func (self *ConcurrentColored) FieldReadBarrierType(f *meta.Field, kind meta.Kind) ir.BarrierType {
    if kind != meta.Object {
        return ir.BarrierNone
    } else if f == self.md.ReferentField() {
        return ir.BarrierReferenceGet
    } else {
        return ir.BarrierRead
    }
}

func (self *ConcurrentColored) FieldWriteBarrierType(_ *meta.Field, kind meta.Kind) ir.BarrierType {
    return defaultFieldWriteBarrierType(kind)
}

func (self *ConcurrentColored) ArrayWriteBarrierType(kind meta.Kind) ir.BarrierType {
    return defaultArrayWriteBarrierType(kind)
}

// ReadBarrierType requires a Read barrier for every reference loaded through
// an object base, whatever the location says.
func (self *ConcurrentColored) ReadBarrierType(g *ir.Graph, _ ir.LocationIdentity, addr ir.ID, load ir.Stamp) ir.BarrierType {
    if !load.IsObject() {
        return ir.BarrierNone
    } else if IsObjectValue(g, addr) || IsObjectValue(g, g.AddressBase(addr)) {
        return ir.BarrierRead
    } else {
        return ir.BarrierNone
    }
}

func (self *ConcurrentColored) WriteBarrierType(g *ir.Graph, store *ir.RawStore) ir.BarrierType {
    return defaultWriteBarrierType(self, g, store)
}

// ReadWriteBarrier does not distinguish unknown shapes from arrays, both use
// the same barrier under this collector.
func (self *ConcurrentColored) ReadWriteBarrier(g *ir.Graph, object ir.ID, value ir.ID) ir.BarrierType {
    if bt := defaultReadWriteBarrier(g, self.md, object, value); bt == ir.BarrierUnknown {
        return ir.BarrierArray
    } else {
        return bt
    }
}

func (self *ConcurrentColored) MayNeedPreWriteBarrier(kind meta.Kind) bool {
    return kind == meta.Object
}

func (self *ConcurrentColored) PostAllocationInitBarrier(bt ir.BarrierType) ir.BarrierType {
    switch bt {
        case ir.BarrierField   : return ir.BarrierPostInitWrite
        case ir.BarrierArray   : return ir.BarrierPostInitWrite
        case ir.BarrierUnknown : return ir.BarrierPostInitWrite
        default                : return bt
    }
}

func (self *ConcurrentColored) ShouldAddBarriersInStage(stage opts.Stage) bool {
    return defaultShouldAddBarriersInStage(stage)
}

// AddBarriers inserts nothing, it only rejects barrier types the lowering
// phase would not know how to emit for the access shape.
func (self *ConcurrentColored) AddBarriers(g *ir.Graph, id ir.ID) {
    var ok bool
    var bt ir.BarrierType

    /* check the barrier type against the shape */
    switch v := g.Node(id).(type) {
        case *ir.Read               : bt = v.BarrierType(); ok = bt == ir.BarrierNone || bt == ir.BarrierRead || bt.IsReferentRead()
        case *ir.Write              : bt = v.BarrierType(); ok = isColoredWrite(bt)
        case *ir.CompareAndSwap     : bt = v.BarrierType(); ok = isColoredWrite(bt)
        case *ir.AtomicReadAndWrite : bt = v.BarrierType(); ok = isColoredWrite(bt)
        case *ir.RawStore           : bt = v.BarrierType(); ok = isColoredWrite(bt)
        case *ir.RangeWrite         : bt = v.BarrierType(); ok = isColoredRange(bt)
        default                     : panic(withPolicy(self, ir.Missed(v, "not an access node")))
    }

    /* the lowering must know how to emit it */
    if !ok {
        panic(withPolicy(self, ir.Missed(g.Node(id), "unexpected barrier type %s", bt)))
    }
}

func isColoredWrite(bt ir.BarrierType) bool {
    switch bt {
        case ir.BarrierNone             : return true
        case ir.BarrierField            : return true
        case ir.BarrierArray            : return true
        case ir.BarrierUnknown          : return true
        case ir.BarrierPostInitWrite    : return true
        case ir.BarrierNoKeepaliveWrite : return true
        default                         : return false
    }
}

func isColoredRange(bt ir.BarrierType) bool {
    return bt == ir.BarrierNone || bt == ir.BarrierArray || bt == ir.BarrierPostInitWrite
}

/** Barrier Verification **/

// VerifyBarriers re-derives the barrier type of every access in `g` and
// faults on the first one that disagrees with the type it carries.
func (self *ConcurrentColored) VerifyBarriers(g *ir.Graph) {
    for _, id := range g.FixedNodes() {
        if _, ok := g.Node(id).(ir.Access); ok {
            self.verifyAccess(g, id)
            atomic.AddUint64(&VerifiedCount, 1)
        }
    }
}

func (self *ConcurrentColored) verifyAccess(g *ir.Graph, id ir.ID) {
    switch v := g.Node(id).(type) {
        case *ir.Read               : self.verifyRead(g, v)
        case *ir.Write              : self.verifyWrite(g, v, v.Value, true)
        case *ir.RawStore           : self.verifyWrite(g, v, v.Value, v.NeedsBarrier)
        case *ir.CompareAndSwap     : self.verifyUpdate(g, v, v.NewValue)
        case *ir.AtomicReadAndWrite : self.verifyUpdate(g, v, v.NewValue)
        case *ir.RangeWrite         : self.verifyRange(v)
        default                     : panic(withPolicy(self, ir.Missed(v, "not an access node")))
    }
}

func (self *ConcurrentColored) mismatch(acc ir.Access, expect string) {
    panic(withPolicy(self, ir.Invariant(acc, "expected %s but found %s", expect, acc.BarrierType())))
}

// barrierForLocation derives the type from the location alone, it returns
// false if the location says nothing.
func (self *ConcurrentColored) barrierForLocation(cur ir.BarrierType, loc ir.LocationIdentity) (ir.BarrierType, bool) {
    if loc.IsField() && loc.Field != nil {
        bt := self.FieldReadBarrierType(loc.Field, self.md.StorageKind(loc.Field))
        if bt != cur && bt == ir.BarrierReferenceGet && (cur == ir.BarrierWeakRefersTo || cur == ir.BarrierPhantomRefersTo) {
            return cur, true
        } else {
            return bt, true
        }
    } else if loc.IsObjectArray() {
        return ir.BarrierRead, true
    } else {
        return ir.BarrierNone, false
    }
}

func (self *ConcurrentColored) verifyRead(g *ir.Graph, v *ir.Read) {
    cur := v.BarrierType()
    exp, ok := self.barrierForLocation(cur, v.Loc)

    /* fall back to the shape of the base pointer */
    if !ok {
        exp = self.ReadBarrierType(g, v.Loc, v.Addr, v.LoadStamp)
    }

    /* check the barrier */
    if exp != cur {
        self.mismatch(v, exp.String())
    }
}

// verifyUpdate checks a CAS or an atomic exchange, an object update through an
// object base must use a write barrier.
func (self *ConcurrentColored) verifyUpdate(g *ir.Graph, acc ir.Access, value ir.ID) {
    bt := acc.BarrierType()
    obj := IsObjectValue(g, g.AddressBase(acc.Address()))

    /* check the barrier */
    if !IsObjectValue(g, value) || !obj {
        if bt != ir.BarrierNone {
            self.mismatch(acc, ir.BarrierNone.String())
        }
    } else if bt != ir.BarrierField && bt != ir.BarrierArray {
        self.mismatch(acc, "FIELD or ARRAY")
    }
}

func (self *ConcurrentColored) verifyWrite(g *ir.Graph, acc ir.Access, value ir.ID, needsBarrier bool) {
    bt := acc.BarrierType()
    loc := acc.Location()

    /* primitive writes never have barriers */
    if !IsObjectValue(g, value) {
        if bt != ir.BarrierNone {
            self.mismatch(acc, ir.BarrierNone.String())
        }
        return
    }

    /* stores that are allowed to skip the barrier */
    if bt == ir.BarrierNone {
        if !needsBarrier || IsNullConstant(g, value) || !IsObjectValue(g, g.AddressBase(acc.Address())) {
            return
        } else {
            self.mismatch(acc, "a write barrier")
        }
    }

    /* anything else must be a write barrier */
    if bt == ir.BarrierRead || bt.IsReferentRead() {
        self.mismatch(acc, "a write barrier")
    }

    /* only a fresh object cannot race with a healing load */
    if bt == ir.BarrierPostInitWrite && !loc.IsInit() {
        self.mismatch(acc, "an initializing store")
    }
}

func (self *ConcurrentColored) verifyRange(v *ir.RangeWrite) {
    if bt := v.BarrierType(); !isColoredRange(bt) {
        self.mismatch(v, "NONE, ARRAY or POST_INIT_WRITE")
    } else if bt == ir.BarrierPostInitWrite && !v.IsInitialization() {
        self.mismatch(v, "an initializing copy")
    }
}
