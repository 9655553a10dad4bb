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

// Kind is the storage kind of a value in memory.
type Kind uint8

const (
    Illegal Kind = iota
    Boolean
    Byte
    Char
    Short
    Int
    Long
    Float
    Double
    Object
    Void
)

var _KindNames = [...]string {
    Illegal : "illegal",
    Boolean : "boolean",
    Byte    : "byte",
    Char    : "char",
    Short   : "short",
    Int     : "int",
    Long    : "long",
    Float   : "float",
    Double  : "double",
    Object  : "object",
    Void    : "void",
}

var _KindSizes = [...]int {
    Boolean : 1,
    Byte    : 1,
    Char    : 2,
    Short   : 2,
    Int     : 4,
    Long    : 8,
    Float   : 4,
    Double  : 8,
    Object  : 8,
}

func (self Kind) IsObject() bool {
    return self == Object
}

func (self Kind) IsPrimitive() bool {
    return self >= Boolean && self <= Double
}

// Size returns the number of bytes a value of this kind occupies in the heap,
// 0 for kinds that can not be stored.
func (self Kind) Size() int {
    if int(self) < len(_KindSizes) {
        return _KindSizes[self]
    } else {
        return 0
    }
}

func (self Kind) String() string {
    if int(self) < len(_KindNames) {
        return _KindNames[self]
    } else {
        return fmt.Sprintf("Kind(%d)", uint8(self))
    }
}
