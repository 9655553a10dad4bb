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
    `sync`
)

const (
    _HeaderSize = 16
)

// Registry is an in-memory Provider. It is safe for concurrent use.
type Registry struct {
    lock      sync.RWMutex
    types     map[string]*Type
    arrays    map[*Type]*Type
    prims     map[Kind]*Type
    fields    map[*Type][]*Field
    object    *Type
    reference *Type
    referent  *Field
    arrayifs  []*Type
}

// NewRegistry creates a registry with the core library types registered:
// Object, Cloneable, Serializable, Reference (with its referent field),
// WeakReference, PhantomReference and Object[].
func NewRegistry() *Registry {
    ret := &Registry {
        types  : make(map[string]*Type),
        arrays : make(map[*Type]*Type),
        prims  : make(map[Kind]*Type),
        fields : make(map[*Type][]*Field),
    }

    /* the root of the hierarchy and the array interfaces */
    ret.object = ret.DefineClass("java.lang.Object", nil)
    ret.arrayifs = []*Type {
        ret.DefineInterface("java.lang.Cloneable"),
        ret.DefineInterface("java.io.Serializable"),
    }

    /* the reference wrappers */
    ret.reference = ret.DefineClass("java.lang.ref.Reference", ret.object)
    ret.referent = ret.DefineField(ret.reference, "referent", Object)
    ret.DefineClass("java.lang.ref.WeakReference", ret.reference)
    ret.DefineClass("java.lang.ref.PhantomReference", ret.reference)
    return ret
}

func (self *Registry) Object() *Type {
    return self.object
}

// Lookup finds a type by name, nil if it was never defined.
func (self *Registry) Lookup(name string) *Type {
    self.lock.RLock()
    defer self.lock.RUnlock()
    return self.types[name]
}

// DefineClass registers a class. A nil super makes it a root class.
func (self *Registry) DefineClass(name string, super *Type, ifs ...*Type) *Type {
    return self.define(&Type {
        Name       : name,
        Super      : super,
        Interfaces : ifs,
    })
}

// DefineInterface registers an interface type.
func (self *Registry) DefineInterface(name string, ifs ...*Type) *Type {
    return self.define(&Type {
        Name       : name,
        Interface  : true,
        Interfaces : ifs,
    })
}

func (self *Registry) define(vt *Type) *Type {
    self.lock.Lock()
    defer self.lock.Unlock()

    /* type names must be unique */
    if _, ok := self.types[vt.Name]; ok {
        panic("meta: duplicated type " + vt.Name)
    }

    /* add to the type table */
    self.types[vt.Name] = vt
    return vt
}

// ArrayOf returns the array type whose elements are of type `elem`.
func (self *Registry) ArrayOf(elem *Type) *Type {
    self.lock.Lock()
    defer self.lock.Unlock()

    /* check for cached types */
    if vt, ok := self.arrays[elem]; ok {
        return vt
    }

    /* construct a new array type */
    vt := &Type {
        Name       : elem.Name + "[]",
        Super      : self.object,
        Elem       : elem,
        ElemKind   : Object,
        Interfaces : self.arrayifs,
    }

    /* add to cache */
    self.arrays[elem] = vt
    self.types[vt.Name] = vt
    return vt
}

// PrimitiveArray returns the array type whose elements are primitive values
// of kind `kind`.
func (self *Registry) PrimitiveArray(kind Kind) *Type {
    if !kind.IsPrimitive() {
        panic("meta: not a primitive kind: " + kind.String())
    }

    /* check for cached types */
    self.lock.Lock()
    defer self.lock.Unlock()
    if vt, ok := self.prims[kind]; ok {
        return vt
    }

    /* construct a new array type */
    vt := &Type {
        Name       : kind.String() + "[]",
        Super      : self.object,
        ElemKind   : kind,
        Interfaces : self.arrayifs,
    }

    /* add to cache */
    self.prims[kind] = vt
    self.types[vt.Name] = vt
    return vt
}

// DefineField adds an instance field to `holder`, assigning the next free
// offset after the object header.
func (self *Registry) DefineField(holder *Type, name string, kind Kind) *Field {
    self.lock.Lock()
    defer self.lock.Unlock()

    /* find the next offset */
    off := int64(_HeaderSize)
    for vt := holder; vt != nil; vt = vt.Super {
        for _, f := range self.fields[vt] {
            if end := f.Offset + int64(f.Kind.Size()); end > off {
                off = end
            }
        }
    }

    /* align to the field size */
    if sz := int64(kind.Size()); sz > 1 {
        off = (off + sz - 1) &^ (sz - 1)
    }

    /* create the field */
    fv := &Field {
        Name   : name,
        Holder : holder,
        Kind   : kind,
        Offset : off,
    }

    /* add to the field table */
    self.fields[holder] = append(self.fields[holder], fv)
    return fv
}

// Field finds an instance field declared by `holder` or one of its supers.
func (self *Registry) Field(holder *Type, name string) *Field {
    self.lock.RLock()
    defer self.lock.RUnlock()

    /* walk the class hierarchy */
    for vt := holder; vt != nil; vt = vt.Super {
        for _, f := range self.fields[vt] {
            if f.Name == name {
                return f
            }
        }
    }

    /* not found */
    return nil
}

func (self *Registry) StorageKind(f *Field) Kind {
    return f.Kind
}

func (self *Registry) ReferentField() *Field {
    return self.referent
}

func (self *Registry) ReferenceType() *Type {
    return self.reference
}

func (self *Registry) ObjectArrayType() *Type {
    return self.ArrayOf(self.object)
}
