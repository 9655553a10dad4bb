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

package ir

import (
    `github.com/cloudwego/mbarrier/meta`
)

const (
    _ArrayBase = 16
)

// Builder appends nodes to the control flow of a graph, one straight-line
// segment at a time.
type Builder struct {
    g    *Graph
    pos  ID
    args int
}

func NewBuilder(name string) *Builder {
    g := NewGraph(name)
    return &Builder{g: g, pos: g.Start()}
}

func (self *Builder) Graph() *Graph {
    return self.g
}

// Pos returns the node after which the next fixed node is appended.
func (self *Builder) Pos() ID {
    return self.pos
}

// At moves the insertion point after the fixed node `id`.
func (self *Builder) At(id ID) *Builder {
    self.pos = id
    return self
}

func (self *Builder) append(node Node) ID {
    id := self.g.Add(node)

    /* the current segment must still be open */
    if self.pos == NoNode {
        panic(Invariant(node, "no open control-flow segment to append to"))
    }

    /* link after the current position */
    self.g.AddAfterFixed(self.pos, id)
    self.pos = id
    return id
}

func (self *Builder) terminate(node Node) ID {
    id := self.g.Add(node)
    nb := node.base()

    /* terminators have no next */
    if self.pos == NoNode {
        panic(Invariant(node, "no open control-flow segment to terminate"))
    }

    /* link manually */
    pb := self.g.fixedWithNext(self.pos)
    nb.pred, pb.next, self.pos = self.pos, id, NoNode
    return id
}

/** Values **/

func (self *Builder) Param(st Stamp) ID {
    self.args++
    return self.g.Add(&Param{Index: self.args - 1, S: st})
}

func (self *Builder) Null() ID {
    return self.g.Add(&Constant{S: NullStamp(), Null: true})
}

func (self *Builder) Int(v int64) ID {
    return self.g.Add(&Constant{S: PrimitiveStamp(meta.Int), Value: v})
}

func (self *Builder) Long(v int64) ID {
    return self.g.Add(&Constant{S: PrimitiveStamp(meta.Long), Value: v})
}

// Object is an opaque non-null object constant.
func (self *Builder) Object(vt *meta.Type, handle int64) ID {
    return self.g.Add(&Constant{S: NonNullStamp(vt), Value: handle})
}

func (self *Builder) Value(op string, st Stamp, args ...ID) ID {
    return self.g.Add(&Value{Op: op, S: st, Args: args})
}

/** Addresses **/

func (self *Builder) Address(base ID, offset ID) ID {
    return self.g.Add(&OffsetAddress{Base: base, Offset: offset})
}

func (self *Builder) FieldAddress(obj ID, f *meta.Field) ID {
    return self.Address(obj, self.Long(f.Offset))
}

// ArrayAddress computes the address of element `index` of an array of `elem`.
func (self *Builder) ArrayAddress(arr ID, elem meta.Kind, index ID) ID {
    sc := self.Long(int64(elem.Size()))
    ix := self.Value("mul", PrimitiveStamp(meta.Long), index, sc)
    off := self.Value("add", PrimitiveStamp(meta.Long), ix, self.Long(_ArrayBase))
    return self.Address(arr, off)
}

/** Allocations **/

func (self *Builder) New(vt *meta.Type) ID {
    return self.append(&Allocation{Type: vt, Length: NoNode})
}

func (self *Builder) NewArray(vt *meta.Type, length ID) ID {
    return self.append(&Allocation{Type: vt, Length: length})
}

/** Accesses **/

func fieldStamp(f *meta.Field) Stamp {
    if f.Kind.IsObject() {
        return ObjectStamp(nil)
    } else {
        return PrimitiveStamp(f.Kind)
    }
}

// Read appends a read of `addr` with the given location and load stamp.
func (self *Builder) Read(addr ID, loc LocationIdentity, st Stamp) ID {
    return self.append(&Read {
        AccessBase : AccessBase{Addr: addr, Loc: loc},
        LoadStamp  : st,
    })
}

func (self *Builder) Write(addr ID, loc LocationIdentity, value ID) ID {
    return self.append(&Write {
        AccessBase : AccessBase{Addr: addr, Loc: loc},
        Value      : value,
    })
}

func (self *Builder) ReadField(obj ID, f *meta.Field) ID {
    return self.Read(self.FieldAddress(obj, f), FieldLocation(f), fieldStamp(f))
}

func (self *Builder) WriteField(obj ID, f *meta.Field, value ID) ID {
    return self.Write(self.FieldAddress(obj, f), FieldLocation(f), value)
}

// InitField appends an initializing write of a field.
func (self *Builder) InitField(obj ID, f *meta.Field, value ID) ID {
    return self.Write(self.FieldAddress(obj, f), FieldLocation(f).AsInit(), value)
}

func (self *Builder) ReadArray(arr ID, elem meta.Kind, index ID) ID {
    return self.Read(self.ArrayAddress(arr, elem, index), ArrayLocation(elem), Stamp{Kind: elem})
}

func (self *Builder) WriteArray(arr ID, elem meta.Kind, index ID, value ID) ID {
    return self.Write(self.ArrayAddress(arr, elem, index), ArrayLocation(elem), value)
}

func (self *Builder) CAS(addr ID, loc LocationIdentity, expected ID, value ID) ID {
    return self.append(&CompareAndSwap {
        AccessBase : AccessBase{Addr: addr, Loc: loc},
        Expected   : expected,
        NewValue   : value,
    })
}

func (self *Builder) Xchg(addr ID, loc LocationIdentity, value ID) ID {
    return self.append(&AtomicReadAndWrite {
        AccessBase : AccessBase{Addr: addr, Loc: loc},
        NewValue   : value,
        ValueKind  : self.g.StampOf(value).Kind,
    })
}

// ArrayCopy appends a write of `length` consecutive elements of kind `elem`
// starting at `addr`.
func (self *Builder) ArrayCopy(addr ID, length ID, elem meta.Kind, init bool) ID {
    loc := ArrayLocation(elem)
    if init {
        loc = loc.AsInit()
    }
    return self.append(&RangeWrite {
        AccessBase : AccessBase{Addr: addr, Loc: loc},
        Length     : length,
        Stride     : elem.Size(),
        ElemKind   : elem,
    })
}

// RawStore appends an untyped store through `obj + offset`.
func (self *Builder) RawStore(obj ID, offset ID, value ID, kind meta.Kind, needsBarrier bool) ID {
    return self.append(&RawStore {
        AccessBase   : AccessBase{Addr: self.Address(obj, offset), Loc: AnyLocation},
        Value        : value,
        StoreKind    : kind,
        NeedsBarrier : needsBarrier,
    })
}

// Decide sets the barrier type of an access appended earlier.
func (self *Builder) Decide(id ID, bt BarrierType) ID {
    self.g.Access(id).SetBarrierType(bt)
    return id
}

// NullCheck marks an access as the implicit null check of its base.
func (self *Builder) NullCheck(id ID) ID {
    self.g.Access(id).SetUsedAsNullCheck(true)
    return id
}

/** Control Flow **/

func (self *Builder) Call(target string, st Stamp, args ...ID) ID {
    return self.append(&Call{Target: target, S: st, Args: args})
}

func (self *Builder) Safepoint() ID {
    return self.append(new(Safepoint))
}

// If terminates the current segment with a branch, and returns the begin
// nodes of both successors. The builder is left without an open segment.
func (self *Builder) If(cond ID) (t ID, f ID) {
    t = self.g.Add(new(Begin))
    f = self.g.Add(new(Begin))
    id := self.terminate(&If{Condition: cond, True: t, False: f})

    /* link the successors back to the branch */
    self.g.nodes[t].base().pred = id
    self.g.nodes[f].base().pred = id
    return
}

// End terminates the current segment so it can flow into a merge.
func (self *Builder) End() ID {
    return self.terminate(&End{Merge: NoNode})
}

// Merge joins the given ends and continues appending after the merge.
func (self *Builder) Merge(loop bool, ends ...ID) ID {
    id := self.g.Add(&Merge{Ends: ends, Loop: loop})

    /* point every end to the merge */
    for _, e := range ends {
        if v, ok := self.g.Node(e).(*End); !ok {
            panic(Invariant(self.g.Node(e), "merge input is not an end"))
        } else {
            v.Merge = id
        }
    }

    /* continue after the merge */
    self.pos = id
    return id
}

// LoopEnd terminates the current segment with a back edge to `merge`.
func (self *Builder) LoopEnd(merge ID) ID {
    mb, ok := self.g.Node(merge).(*Merge)
    if !ok || !mb.Loop {
        panic(Invariant(self.g.Node(merge), "back edge target is not a loop begin"))
    }

    /* add the back edge */
    id := self.terminate(&End{Merge: merge})
    mb.Ends = append(mb.Ends, id)
    return id
}

func (self *Builder) Return(value ID) ID {
    return self.terminate(&Return{Result: value})
}
