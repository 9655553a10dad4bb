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
    `strings`

    `github.com/cloudwego/mbarrier/meta`
)

// Stamp is the static type information known about a value.
type Stamp struct {
    Kind       meta.Kind
    Type       *meta.Type
    NonNull    bool
    AlwaysNull bool
}

// Stamped is implemented by nodes that produce a value.
type Stamped interface {
    Node
    Stamp() Stamp
}

func ObjectStamp(vt *meta.Type) Stamp {
    return Stamp{Kind: meta.Object, Type: vt}
}

func NonNullStamp(vt *meta.Type) Stamp {
    return Stamp{Kind: meta.Object, Type: vt, NonNull: true}
}

func NullStamp() Stamp {
    return Stamp{Kind: meta.Object, AlwaysNull: true}
}

func PrimitiveStamp(kind meta.Kind) Stamp {
    return Stamp{Kind: kind}
}

func (self Stamp) IsObject() bool {
    return self.Kind == meta.Object
}

func (self Stamp) String() string {
    var sb strings.Builder
    sb.WriteString(self.Kind.String())

    /* only object stamps carry more information */
    if self.IsObject() {
        if self.Type != nil {
            sb.WriteString("<" + self.Type.Name + ">")
        }
        if self.NonNull {
            sb.WriteString("!")
        }
        if self.AlwaysNull {
            sb.WriteString("(null)")
        }
    }

    /* all done */
    return sb.String()
}
