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
    `strings`

    `github.com/cloudwego/mbarrier/meta`
)

func (*Start)      fixed() {}
func (*Begin)      fixed() {}
func (*If)         fixed() {}
func (*End)        fixed() {}
func (*Merge)      fixed() {}
func (*Return)     fixed() {}
func (*Call)       fixed() {}
func (*Safepoint)  fixed() {}
func (*Allocation) fixed() {}

func (*Start)      fixedWithNext() {}
func (*Begin)      fixedWithNext() {}
func (*Merge)      fixedWithNext() {}
func (*Call)       fixedWithNext() {}
func (*Safepoint)  fixedWithNext() {}
func (*Allocation) fixedWithNext() {}

/** Floating Nodes **/

// Constant is a constant value. Object constants other than null are opaque.
type Constant struct {
    NodeBase
    S     Stamp
    Null  bool
    Value int64
}

func (self *Constant) Stamp() Stamp {
    return self.S
}

func (self *Constant) String() string {
    if self.Null {
        return "const null"
    } else if self.S.IsObject() {
        return fmt.Sprintf("const object(%#x) %s", self.Value, self.S)
    } else {
        return fmt.Sprintf("const %d %s", self.Value, self.S)
    }
}

// Param is an incoming parameter of the compilation unit.
type Param struct {
    NodeBase
    Index int
    S     Stamp
}

func (self *Param) Stamp() Stamp {
    return self.S
}

func (self *Param) String() string {
    return fmt.Sprintf("param %d %s", self.Index, self.S)
}

// Value is an opaque computed value.
type Value struct {
    NodeBase
    Op   string
    S    Stamp
    Args []ID
}

func (self *Value) Stamp() Stamp {
    return self.S
}

func (self *Value) Usages() []*ID {
    return idrefs(self.Args)
}

func (self *Value) String() string {
    return fmt.Sprintf("%s(%s) %s", self.Op, idjoin(self.Args), self.S)
}

// OffsetAddress is the address `Base + Offset`.
type OffsetAddress struct {
    NodeBase
    Base   ID
    Offset ID
}

func (self *OffsetAddress) Stamp() Stamp {
    return PrimitiveStamp(meta.Long)
}

func (self *OffsetAddress) Usages() []*ID {
    return []*ID { &self.Base, &self.Offset }
}

func (self *OffsetAddress) String() string {
    return fmt.Sprintf("address %s + %s", self.Base, self.Offset)
}

/** Control Flow Nodes **/

type Start struct {
    NodeBase
}

func (self *Start) String() string {
    return "start"
}

// Begin starts a straight-line segment after a control-flow split.
type Begin struct {
    NodeBase
}

func (self *Begin) String() string {
    return "begin"
}

type If struct {
    NodeBase
    Condition ID
    True      ID
    False     ID
}

func (self *If) Usages() []*ID {
    return []*ID { &self.Condition }
}

func (self *If) String() string {
    return fmt.Sprintf("if %s then %s else %s", self.Condition, self.True, self.False)
}

// End ends a straight-line segment that flows into a merge.
type End struct {
    NodeBase
    Merge ID
}

func (self *End) String() string {
    return fmt.Sprintf("end -> %s", self.Merge)
}

// Merge joins several control-flow paths, it has no single predecessor.
type Merge struct {
    NodeBase
    Ends []ID
    Loop bool
}

func (self *Merge) String() string {
    if self.Loop {
        return fmt.Sprintf("loop begin <- {%s}", idjoin(self.Ends))
    } else {
        return fmt.Sprintf("merge <- {%s}", idjoin(self.Ends))
    }
}

type Return struct {
    NodeBase
    Result ID
}

func (self *Return) Usages() []*ID {
    return []*ID { &self.Result }
}

func (self *Return) String() string {
    return fmt.Sprintf("return %s", self.Result)
}

// Call is an opaque call, which may contain a safepoint.
type Call struct {
    NodeBase
    Target string
    Args   []ID
    S      Stamp
}

func (self *Call) Stamp() Stamp {
    return self.S
}

func (self *Call) Usages() []*ID {
    return idrefs(self.Args)
}

func (self *Call) String() string {
    return fmt.Sprintf("call %s(%s) %s", self.Target, idjoin(self.Args), self.S)
}

type Safepoint struct {
    NodeBase
}

func (self *Safepoint) String() string {
    return "safepoint"
}

// Allocation creates a new object or array, the node itself is the result.
type Allocation struct {
    NodeBase
    Type   *meta.Type
    Length ID
}

func (self *Allocation) Stamp() Stamp {
    return NonNullStamp(self.Type)
}

func (self *Allocation) Usages() []*ID {
    return []*ID { &self.Length }
}

func (self *Allocation) String() string {
    if self.Length == NoNode {
        return fmt.Sprintf("new %s", self.Type)
    } else {
        return fmt.Sprintf("new %s[%s]", self.Type, self.Length)
    }
}

func idrefs(v []ID) (r []*ID) {
    r = make([]*ID, len(v))
    for i := range v { r[i] = &v[i] }
    return
}

func idjoin(v []ID) string {
    buf := make([]string, len(v))
    for i, id := range v { buf[i] = id.String() }
    return strings.Join(buf, ", ")
}
