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
    `fmt`

    `github.com/cloudwego/mbarrier/meta`
)

// Access is a heap load or store, before barrier insertion. The concrete
// shapes are Read, Write, CompareAndSwap, AtomicReadAndWrite, RangeWrite and
// RawStore.
type Access interface {
    FixedWithNext
    Address() ID
    Location() LocationIdentity
    UsedAsNullCheck() bool
    SetUsedAsNullCheck(v bool)
    BarrierType() BarrierType
    HasBarrierType() bool
    SetBarrierType(bt BarrierType)
    access() *AccessBase
}

func (*Read)               fixed() {}
func (*Write)              fixed() {}
func (*CompareAndSwap)     fixed() {}
func (*AtomicReadAndWrite) fixed() {}
func (*RangeWrite)         fixed() {}
func (*RawStore)           fixed() {}

func (*Read)               fixedWithNext() {}
func (*Write)              fixedWithNext() {}
func (*CompareAndSwap)     fixedWithNext() {}
func (*AtomicReadAndWrite) fixedWithNext() {}
func (*RangeWrite)         fixedWithNext() {}
func (*RawStore)           fixedWithNext() {}

// AccessBase holds the attributes shared by all the access shapes.
type AccessBase struct {
    NodeBase
    Addr      ID
    Loc       LocationIdentity
    NullCheck bool
    barrier   BarrierType
    decided   bool
}

// WithBarrier creates an AccessBase whose barrier type is already decided.
func WithBarrier(addr ID, loc LocationIdentity, bt BarrierType) AccessBase {
    return AccessBase {
        Addr    : addr,
        Loc     : loc,
        barrier : bt,
        decided : true,
    }
}

func (self *AccessBase) access() *AccessBase      { return self }
func (self *AccessBase) Address() ID               { return self.Addr }
func (self *AccessBase) Location() LocationIdentity { return self.Loc }
func (self *AccessBase) UsedAsNullCheck() bool     { return self.NullCheck }
func (self *AccessBase) BarrierType() BarrierType  { return self.barrier }
func (self *AccessBase) HasBarrierType() bool      { return self.decided }

// SetUsedAsNullCheck hands the implicit null check of the base over to, or
// back from, a barrier placed before the access.
func (self *AccessBase) SetUsedAsNullCheck(v bool) {
    self.NullCheck = v
}

// SetBarrierType decides the barrier type of the access, it can only be done
// once.
func (self *AccessBase) SetBarrierType(bt BarrierType) {
    if !self.decided {
        self.barrier, self.decided = bt, true
    } else if self.g == nil {
        panic(Invariant(nil, "barrier type is already set to %s", self.barrier))
    } else {
        panic(Invariant(self.g.Node(self.id), "barrier type is already set to %s", self.barrier))
    }
}

func (self *AccessBase) usages() []*ID {
    return []*ID { &self.Addr }
}

func (self *AccessBase) describe(op string, rest string) string {
    var bt string
    var nc string

    /* barrier type may be undecided */
    if self.decided {
        bt = self.barrier.String()
    } else {
        bt = "?"
    }

    /* null check marker */
    if self.NullCheck {
        nc = " nullcheck"
    }

    /* format the access */
    return fmt.Sprintf("%s [%s]%s %s %s%s", op, self.Addr, rest, self.Loc, bt, nc)
}

// Read loads a value from memory.
type Read struct {
    AccessBase
    LoadStamp Stamp
}

func (self *Read) Stamp() Stamp   { return self.LoadStamp }
func (self *Read) Usages() []*ID  { return self.usages() }
func (self *Read) String() string { return self.describe("read", " " + self.LoadStamp.String()) }

// Write stores a value to memory.
type Write struct {
    AccessBase
    Value ID
}

func (self *Write) Usages() []*ID  { return append(self.usages(), &self.Value) }
func (self *Write) String() string { return self.describe("write", fmt.Sprintf(" <- %s", self.Value)) }

// CompareAndSwap conditionally replaces `Expected` with `NewValue`.
type CompareAndSwap struct {
    AccessBase
    Expected ID
    NewValue ID
}

func (self *CompareAndSwap) Stamp() Stamp {
    return PrimitiveStamp(meta.Boolean)
}

func (self *CompareAndSwap) Usages() []*ID {
    return append(self.usages(), &self.Expected, &self.NewValue)
}

func (self *CompareAndSwap) String() string {
    return self.describe("cas", fmt.Sprintf(" %s -> %s", self.Expected, self.NewValue))
}

// AtomicReadAndWrite atomically replaces the memory with `NewValue` and
// returns the old value.
type AtomicReadAndWrite struct {
    AccessBase
    NewValue  ID
    ValueKind meta.Kind
}

func (self *AtomicReadAndWrite) Stamp() Stamp {
    return Stamp{Kind: self.ValueKind}
}

func (self *AtomicReadAndWrite) Usages() []*ID {
    return append(self.usages(), &self.NewValue)
}

func (self *AtomicReadAndWrite) String() string {
    return self.describe("xchg", fmt.Sprintf(" <- %s", self.NewValue))
}

// RangeWrite writes `Length` consecutive array elements of `Stride` bytes
// starting at its address, e.g. an array copy.
type RangeWrite struct {
    AccessBase
    Length   ID
    Stride   int
    ElemKind meta.Kind
}

// IsInitialization reports whether the range is written for the first time
// right after allocation.
func (self *RangeWrite) IsInitialization() bool {
    return self.Loc.IsInit()
}

// WritesObjectArray reports whether the elements are object references.
func (self *RangeWrite) WritesObjectArray() bool {
    return self.ElemKind == meta.Object
}

func (self *RangeWrite) Usages() []*ID {
    return append(self.usages(), &self.Length)
}

func (self *RangeWrite) String() string {
    return self.describe("range-write", fmt.Sprintf(" len=%s stride=%d %s", self.Length, self.Stride, self.ElemKind))
}

// RawStore is an untyped store of `StoreKind` through an object base and an
// offset, which may or may not target the heap.
type RawStore struct {
    AccessBase
    Value        ID
    StoreKind    meta.Kind
    NeedsBarrier bool
}

func (self *RawStore) Usages() []*ID {
    return append(self.usages(), &self.Value)
}

func (self *RawStore) String() string {
    return self.describe("raw-store", fmt.Sprintf(" <- %s %s", self.Value, self.StoreKind))
}
