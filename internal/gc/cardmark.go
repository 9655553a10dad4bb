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

// Whether a card mark must target the exact written address. Field writes may
// dirty the card of the object header instead.
var _CardPrecise = map[ir.BarrierType]bool {
    ir.BarrierField            : false,
    ir.BarrierArray            : true,
    ir.BarrierUnknown          : true,
    ir.BarrierNoKeepaliveWrite : false,
}

// CardMarking is the policy for a generational collector with a card table.
// It only ever needs post-write barriers.
type CardMarking struct {
    md        meta.Provider
    deferInit bool
}

func NewCardMarking(md meta.Provider, deferInit bool) *CardMarking {
    return &CardMarking {
        md        : md,
        deferInit : deferInit,
    }
}

func (self *CardMarking) Name() string {
    return "card"
}

func (self *CardMarking) FieldReadBarrierType(_ *meta.Field, _ meta.Kind) ir.BarrierType {
    return ir.BarrierNone
}

func (self *CardMarking) FieldWriteBarrierType(_ *meta.Field, kind meta.Kind) ir.BarrierType {
    return defaultFieldWriteBarrierType(kind)
}

func (self *CardMarking) ArrayWriteBarrierType(kind meta.Kind) ir.BarrierType {
    return defaultArrayWriteBarrierType(kind)
}

func (self *CardMarking) ReadBarrierType(_ *ir.Graph, _ ir.LocationIdentity, _ ir.ID, _ ir.Stamp) ir.BarrierType {
    return ir.BarrierNone
}

func (self *CardMarking) WriteBarrierType(g *ir.Graph, store *ir.RawStore) ir.BarrierType {
    return defaultWriteBarrierType(self, g, store)
}

func (self *CardMarking) ReadWriteBarrier(g *ir.Graph, object ir.ID, value ir.ID) ir.BarrierType {
    return defaultReadWriteBarrier(g, self.md, object, value)
}

func (self *CardMarking) MayNeedPreWriteBarrier(_ meta.Kind) bool {
    return false
}

func (self *CardMarking) PostAllocationInitBarrier(bt ir.BarrierType) ir.BarrierType {
    return bt
}

func (self *CardMarking) ShouldAddBarriersInStage(stage opts.Stage) bool {
    return defaultShouldAddBarriersInStage(stage)
}

func (self *CardMarking) AddBarriers(g *ir.Graph, id ir.ID) {
    switch v := g.Node(id).(type) {
        case *ir.Read               : checkReadBarrier(self, g, id, v.BarrierType())
        case *ir.Write              : self.addPostBarrier(g, id, v.Value)
        case *ir.CompareAndSwap     : self.addPostBarrier(g, id, v.NewValue)
        case *ir.AtomicReadAndWrite : self.addPostBarrier(g, id, v.NewValue)
        case *ir.RawStore           : self.addPostBarrier(g, id, v.Value)
        case *ir.RangeWrite         : self.addRangeBarrier(g, id, v)
        default                     : panic(withPolicy(self, ir.Missed(v, "not an access node")))
    }
}

// writeRequiresBarrier tells whether storing `value` needs a card mark. Null
// stores never create an old-to-young reference.
func (self *CardMarking) writeRequiresBarrier(g *ir.Graph, id ir.ID, value ir.ID) bool {
    if IsNullConstant(g, value) {
        return false
    } else if self.deferInit && IsWriteToNewObject(g, id) {
        return false
    } else {
        return true
    }
}

func (self *CardMarking) needsWriteBarrier(g *ir.Graph, id ir.ID, value ir.ID) bool {
    switch bt := g.Access(id).BarrierType(); bt {
        case ir.BarrierNone: {
            return false
        }

        /* card marked stores */
        case ir.BarrierField, ir.BarrierArray, ir.BarrierUnknown, ir.BarrierNoKeepaliveWrite: {
            return self.writeRequiresBarrier(g, id, value)
        }

        /* nothing else can reach a card table */
        default: {
            panic(withPolicy(self, ir.Missed(g.Node(id), "unexpected barrier type %s for a write", bt)))
        }
    }
}

func (self *CardMarking) addPostBarrier(g *ir.Graph, id ir.ID, value ir.ID) {
    acc := g.Access(id)

    /* check if the barrier is required */
    if !self.needsWriteBarrier(g, id, value) {
        if acc.BarrierType() != ir.BarrierNone { countElided() }
        return
    }

    /* already barriered */
    if self.HasBarrier(g, id) {
        return
    }

    /* add after the store */
    g.AddAfterFixed(id, g.Add(self.newPostWrite(g, id)))
    countInserted()
}

func (self *CardMarking) addRangeBarrier(g *ir.Graph, id ir.ID, v *ir.RangeWrite) {
    if v.BarrierType() == ir.BarrierNone || !v.WritesObjectArray() {
        return
    }

    /* nothing is written, or the array is fresh */
    if isZeroConstant(g, v.Length) || (self.deferInit && IsWriteToNewObject(g, id)) {
        countElided()
        return
    }

    /* already barriered */
    if self.HasBarrier(g, id) {
        return
    }

    /* a destination known not to be an array can be marked through its base */
    if pb := self.newPostWrite(g, id); pb != nil {
        g.AddAfterFixed(id, g.Add(pb))
    } else {
        g.AddAfterFixed(id, g.Add(&ir.RangePostWrite{Addr: v.Addr, Length: v.Length, Stride: v.Stride}))
    }

    /* update the counter */
    countInserted()
}

// newPostWrite builds the single card mark for the access `id`. Imprecise
// marks dirty the card of the object header. It returns nil for a range write
// that needs a RangePostWrite instead.
func (self *CardMarking) newPostWrite(g *ir.Graph, id ir.ID) *ir.PostWrite {
    acc := g.Access(id)
    addr := acc.Address()

    /* range writes are only marked through a base known not to be an array */
    if v, ok := acc.(*ir.RangeWrite); ok {
        if obj := g.AddressBase(v.Addr); obj != ir.NoNode && IsObjectValue(g, obj) && classifyBase(g, self.md, obj) == ir.BarrierField {
            return &ir.PostWrite{Addr: addr, Value: ir.NoNode, Base: obj}
        } else {
            return nil
        }
    }

    /* construct the post barrier */
    value := storedValue(acc)
    pb := &ir.PostWrite {
        Addr       : addr,
        Value      : value,
        Base       : ir.NoNode,
        AlwaysNull : g.StampOf(value).AlwaysNull,
        Precise    : _CardPrecise[acc.BarrierType()],
    }

    /* set the base object */
    if !pb.Precise {
        pb.Base = g.AddressBase(addr)
    }

    /* all done */
    return pb
}

// HasBarrier reports whether the access `id` is already followed by the card
// mark this policy would insert for it.
func (self *CardMarking) HasBarrier(g *ir.Graph, id ir.ID) bool {
    nx := g.Next(id)
    acc := g.Access(id)

    /* must be followed by a node */
    if nx == ir.NoNode {
        return false
    }

    /* check the barrier shape */
    switch b := g.Node(nx).(type) {
        case *ir.PostWrite      : return isSamePostWrite(b, self.newPostWrite(g, id))
        case *ir.RangePostWrite : return b.Addr == acc.Address() && isMatchingRange(acc, b.Length, b.Stride)
        default                 : return false
    }
}

func isSamePostWrite(b *ir.PostWrite, exp *ir.PostWrite) bool {
    if exp == nil {
        return false
    } else {
        return b.Addr == exp.Addr && b.Value == exp.Value && b.Base == exp.Base && b.Precise == exp.Precise
    }
}

// storedValue returns the value written by a single-element store.
func storedValue(acc ir.Access) ir.ID {
    switch v := acc.(type) {
        case *ir.Write              : return v.Value
        case *ir.CompareAndSwap     : return v.NewValue
        case *ir.AtomicReadAndWrite : return v.NewValue
        case *ir.RawStore           : return v.Value
        default                     : return ir.NoNode
    }
}

func isMatchingRange(acc ir.Access, length ir.ID, stride int) bool {
    if v, ok := acc.(*ir.RangeWrite); !ok {
        return false
    } else {
        return v.Length == length && v.Stride == stride
    }
}
