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
)

// BarrierKind tells the lowering phase on which side of the access a barrier
// node was placed.
type BarrierKind uint8

const (
    PreBarrier BarrierKind = iota
    PostBarrier
)

func (self BarrierKind) String() string {
    switch self {
        case PreBarrier  : return "pre"
        case PostBarrier : return "post"
        default          : return fmt.Sprintf("BarrierKind(%d)", uint8(self))
    }
}

// BaseStatus is a hint for the lowering phase about how likely the base
// object of a post-write barrier is to be young.
type BaseStatus uint8

const (
    BaseDefault BaseStatus = iota
    BaseNoLoopOrCall
    BaseNoLoopOrSafepoint
)

func (self BaseStatus) String() string {
    switch self {
        case BaseDefault           : return "default"
        case BaseNoLoopOrCall      : return "no-loop-or-call"
        case BaseNoLoopOrSafepoint : return "no-loop-or-safepoint"
        default                    : return fmt.Sprintf("BaseStatus(%d)", uint8(self))
    }
}

// Barrier is a GC barrier node spliced into the control flow.
type Barrier interface {
    FixedWithNext
    Kind() BarrierKind
    Address() ID
    barrier()
}

func (*PreWrite)       fixed() {}
func (*PostWrite)      fixed() {}
func (*RangePreWrite)  fixed() {}
func (*RangePostWrite) fixed() {}
func (*ReferentRead)   fixed() {}

func (*PreWrite)       fixedWithNext() {}
func (*PostWrite)      fixedWithNext() {}
func (*RangePreWrite)  fixedWithNext() {}
func (*RangePostWrite) fixedWithNext() {}
func (*ReferentRead)   fixedWithNext() {}

func (*PreWrite)       barrier() {}
func (*PostWrite)      barrier() {}
func (*RangePreWrite)  barrier() {}
func (*RangePostWrite) barrier() {}
func (*ReferentRead)   barrier() {}

// PreWrite logs the value about to be overwritten. With `DoLoad` the barrier
// loads the old value itself, otherwise `Expected` is the value to log.
// With `NullCheck` the barrier also performs the implicit null check of the
// access that follows it.
type PreWrite struct {
    NodeBase
    Addr      ID
    Expected  ID
    DoLoad    bool
    NullCheck bool
}

func (self *PreWrite) Kind() BarrierKind { return PreBarrier }
func (self *PreWrite) Address() ID       { return self.Addr }

func (self *PreWrite) Usages() []*ID {
    return []*ID { &self.Addr, &self.Expected }
}

func (self *PreWrite) String() string {
    return fmt.Sprintf("pre-write-barrier [%s] expected=%s load=%t nullcheck=%t", self.Addr, self.Expected, self.DoLoad, self.NullCheck)
}

// PostWrite records the store of `Value`. A precise barrier targets the
// written address, an imprecise one may target `Base`.
type PostWrite struct {
    NodeBase
    Addr       ID
    Value      ID
    Base       ID
    AlwaysNull bool
    Precise    bool
    BaseStatus BaseStatus
    Eliminated bool
}

func (self *PostWrite) Kind() BarrierKind { return PostBarrier }
func (self *PostWrite) Address() ID       { return self.Addr }

func (self *PostWrite) Usages() []*ID {
    return []*ID { &self.Addr, &self.Value, &self.Base }
}

func (self *PostWrite) String() string {
    return fmt.Sprintf(
        "post-write-barrier [%s] value=%s base=%s precise=%t null=%t status=%s",
        self.Addr,
        self.Value,
        self.Base,
        self.Precise,
        self.AlwaysNull,
        self.BaseStatus,
    )
}

// RangePreWrite logs every element of a range about to be overwritten.
type RangePreWrite struct {
    NodeBase
    Addr   ID
    Length ID
    Stride int
}

func (self *RangePreWrite) Kind() BarrierKind { return PreBarrier }
func (self *RangePreWrite) Address() ID       { return self.Addr }

func (self *RangePreWrite) Usages() []*ID {
    return []*ID { &self.Addr, &self.Length }
}

func (self *RangePreWrite) String() string {
    return fmt.Sprintf("range-pre-write-barrier [%s] len=%s stride=%d", self.Addr, self.Length, self.Stride)
}

// RangePostWrite records the store of every element of a range.
type RangePostWrite struct {
    NodeBase
    Addr   ID
    Length ID
    Stride int
}

func (self *RangePostWrite) Kind() BarrierKind { return PostBarrier }
func (self *RangePostWrite) Address() ID       { return self.Addr }

func (self *RangePostWrite) Usages() []*ID {
    return []*ID { &self.Addr, &self.Length }
}

func (self *RangePostWrite) String() string {
    return fmt.Sprintf("range-post-write-barrier [%s] len=%s stride=%d", self.Addr, self.Length, self.Stride)
}

// ReferentRead keeps a referent read by `Expected` alive by logging it, as if
// it had been overwritten.
type ReferentRead struct {
    NodeBase
    Addr     ID
    Expected ID
}

func (self *ReferentRead) Kind() BarrierKind { return PreBarrier }
func (self *ReferentRead) Address() ID       { return self.Addr }

func (self *ReferentRead) Usages() []*ID {
    return []*ID { &self.Addr, &self.Expected }
}

func (self *ReferentRead) String() string {
    return fmt.Sprintf("referent-read-barrier [%s] value=%s", self.Addr, self.Expected)
}
