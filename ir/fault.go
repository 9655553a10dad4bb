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

    `github.com/davecgh/go-spew/spew`
)

type FaultKind uint8

const (
    // MissedCase means an access shape reached a barrier policy that does not
    // recognize it, so the IR producer and the policy are out of sync.
    MissedCase FaultKind = iota

    // InvariantViolation means the graph or a barrier contradicts a rule
    // the collector depends on.
    InvariantViolation
)

func (self FaultKind) String() string {
    switch self {
        case MissedCase         : return "missed case"
        case InvariantViolation : return "invariant violation"
        default                 : return fmt.Sprintf("FaultKind(%d)", uint8(self))
    }
}

// Fault is an internal compiler error raised while placing barriers. It is
// raised with panic and aborts only the compilation unit being processed.
type Fault struct {
    Kind   FaultKind
    Policy string
    Node   string
    Reason string
    node   Node
}

var _DumpConfig = spew.ConfigState {
    Indent                  : "    ",
    MaxDepth                : 3,
    DisablePointerAddresses : true,
    DisableMethods          : true,
    SortKeys                : true,
}

func (self *Fault) Error() string {
    if self.Policy == "" {
        return fmt.Sprintf("%s at %s: %s", self.Kind, self.Node, self.Reason)
    } else {
        return fmt.Sprintf("%s (%s) at %s: %s", self.Kind, self.Policy, self.Node, self.Reason)
    }
}

// Detail dumps the offending node with all its fields, for offline diagnosis.
func (self *Fault) Detail() string {
    if self.node == nil {
        return self.Error()
    } else {
        return self.Error() + "\n" + _DumpConfig.Sdump(self.node)
    }
}

func newFault(kind FaultKind, node Node, reason string) *Fault {
    ret := &Fault {
        Kind   : kind,
        Reason : reason,
        node   : node,
    }

    /* render the node identity */
    if node == nil {
        ret.Node = "<nil>"
    } else {
        ret.Node = fmt.Sprintf("%s: %s", node.base().Id(), node)
    }

    /* all done */
    return ret
}

// Missed creates a missed-case fault for `node`.
func Missed(node Node, format string, args ...interface{}) *Fault {
    return newFault(MissedCase, node, fmt.Sprintf(format, args...))
}

// Invariant creates an invariant-violation fault for `node`.
func Invariant(node Node, format string, args ...interface{}) *Fault {
    return newFault(InvariantViolation, node, fmt.Sprintf(format, args...))
}
