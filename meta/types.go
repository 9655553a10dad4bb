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

package meta

import (
    `fmt`
)

// Type is a resolved class, interface or array type.
//
// Types are immutable once the registry that created them is sealed, so they
// can be shared by any number of concurrent compilations.
type Type struct {
    Name       string
    Super      *Type
    Elem       *Type
    ElemKind   Kind
    Interface  bool
    Interfaces []*Type
}

func (self *Type) IsArray() bool {
    return self.ElemKind != Illegal
}

// IsAssignableFrom reports whether a value of type `other` can be stored into
// a location declared with this type.
func (self *Type) IsAssignableFrom(other *Type) bool {
    if other == nil {
        return false
    }

    /* identical types */
    if self == other {
        return true
    }

    /* arrays are covariant in their element type */
    if self.IsArray() {
        if !other.IsArray() {
            return false
        } else if self.ElemKind != Object || other.ElemKind != Object {
            return self.ElemKind == other.ElemKind && self.Elem == other.Elem
        } else {
            return self.Elem.IsAssignableFrom(other.Elem)
        }
    }

    /* walk the super types and interfaces */
    for _, p := range other.supertypes() {
        if p == self || self.IsAssignableFrom(p) {
            return true
        }
    }

    /* nothing matches */
    return false
}

func (self *Type) supertypes() []*Type {
    if self.Super == nil {
        return self.Interfaces
    } else {
        return append([]*Type { self.Super }, self.Interfaces...)
    }
}

func (self *Type) String() string {
    if self == nil {
        return "<unknown>"
    } else {
        return self.Name
    }
}

// Field is a resolved instance or static field.
type Field struct {
    Name   string
    Holder *Type
    Kind   Kind
    Offset int64
    Static bool
}

func (self *Field) String() string {
    return fmt.Sprintf("%s.%s:%s", self.Holder, self.Name, self.Kind)
}

// Provider resolves the metadata the barrier policies depend on.
type Provider interface {
    StorageKind(f *Field) Kind
    ReferentField() *Field
    ReferenceType() *Type
    ObjectArrayType() *Type
}
