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

type LocationKind uint8

const (
    LocAny LocationKind = iota
    LocField
    LocArray
    LocOffHeap
)

// LocationIdentity identifies the memory an access may touch. Identities are
// comparable with ==.
type LocationIdentity struct {
    Kind  LocationKind
    Field *meta.Field
    Elem  meta.Kind
    Init  bool
}

var (
    AnyLocation     = LocationIdentity{Kind: LocAny}
    OffHeapLocation = LocationIdentity{Kind: LocOffHeap}
)

// FieldLocation is the location of a field. A nil field is allowed for field
// locations that are not tied to a resolved field.
func FieldLocation(f *meta.Field) LocationIdentity {
    return LocationIdentity{Kind: LocField, Field: f}
}

// ArrayLocation is the location of all the array elements of kind `elem`.
func ArrayLocation(elem meta.Kind) LocationIdentity {
    return LocationIdentity{Kind: LocArray, Elem: elem}
}

// AsInit marks the location as the target of an initializing write.
func (self LocationIdentity) AsInit() LocationIdentity {
    self.Init = true
    return self
}

func (self LocationIdentity) IsInit() bool {
    return self.Init
}

func (self LocationIdentity) IsField() bool {
    return self.Kind == LocField
}

func (self LocationIdentity) IsArray() bool {
    return self.Kind == LocArray
}

// IsObjectArray reports whether this is the element location of object arrays.
func (self LocationIdentity) IsObjectArray() bool {
    return self.Kind == LocArray && self.Elem == meta.Object
}

// IsUnknown reports whether the location may alias any heap or raw memory.
func (self LocationIdentity) IsUnknown() bool {
    return self.Kind == LocAny || self.Kind == LocOffHeap
}

func (self LocationIdentity) String() string {
    var ret string
    switch self.Kind {
        case LocAny     : ret = "any"
        case LocOffHeap : ret = "off-heap"
        case LocArray   : ret = fmt.Sprintf("array(%s)", self.Elem)
        case LocField   : if self.Field == nil { ret = "field(?)" } else { ret = fmt.Sprintf("field(%s.%s)", self.Field.Holder, self.Field.Name) }
        default         : ret = fmt.Sprintf("LocationKind(%d)", uint8(self.Kind))
    }

    /* mark initializing locations */
    if self.Init {
        return "init:" + ret
    } else {
        return ret
    }
}
