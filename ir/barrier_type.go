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

// BarrierType describes what kind of GC barrier a memory access requires.
type BarrierType uint8

const (
    // BarrierNone means no barrier is required. Only legal on primitive or
    // provably null accesses, unless the collector does not need barriers.
    BarrierNone BarrierType = iota

    // BarrierField is a write to an object field.
    BarrierField

    // BarrierArray is a write to an object array element.
    BarrierArray

    // BarrierUnknown is a write (or read) whose target may be either a field
    // or an array element.
    BarrierUnknown

    // BarrierNoKeepaliveWrite is a write that must not keep the old value
    // alive, e.g. clearing a referent.
    BarrierNoKeepaliveWrite

    // BarrierPostInitWrite is an initializing write into a freshly allocated
    // object.
    BarrierPostInitWrite

    // BarrierRead is a heap load of an object reference.
    BarrierRead

    // BarrierReferenceGet is a load of a referent that keeps it alive.
    BarrierReferenceGet

    // BarrierWeakRefersTo is a referent load that does not keep it alive,
    // for weak references.
    BarrierWeakRefersTo

    // BarrierPhantomRefersTo is a referent load that does not keep it alive,
    // for phantom references.
    BarrierPhantomRefersTo
)

var _BarrierNames = [...]string {
    BarrierNone             : "NONE",
    BarrierField            : "FIELD",
    BarrierArray            : "ARRAY",
    BarrierUnknown          : "UNKNOWN",
    BarrierNoKeepaliveWrite : "AS_NO_KEEPALIVE_WRITE",
    BarrierPostInitWrite    : "POST_INIT_WRITE",
    BarrierRead             : "READ",
    BarrierReferenceGet     : "REFERENCE_GET",
    BarrierWeakRefersTo     : "WEAK_REFERS_TO",
    BarrierPhantomRefersTo  : "PHANTOM_REFERS_TO",
}

func (self BarrierType) String() string {
    if int(self) < len(_BarrierNames) {
        return _BarrierNames[self]
    } else {
        return fmt.Sprintf("BarrierType(%d)", uint8(self))
    }
}

// IsReferentRead reports whether the barrier is one of the encodings of a
// referent-field read.
func (self BarrierType) IsReferentRead() bool {
    return self == BarrierReferenceGet || self == BarrierWeakRefersTo || self == BarrierPhantomRefersTo
}
