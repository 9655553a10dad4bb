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

    `github.com/oleiade/lane`
)

// ID is the index of a node in the arena of its graph.
type ID int32

// NoNode is the ID used for absent operands and links.
const NoNode ID = -1

func (self ID) String() string {
    if self == NoNode {
        return "nil"
    } else {
        return fmt.Sprintf("v%d", int32(self))
    }
}

// Node is any node in the graph.
type Node interface {
    fmt.Stringer
    base() *NodeBase
}

// Usages is implemented by nodes that reference other nodes.
type Usages interface {
    Node
    Usages() []*ID
}

// Fixed is implemented by nodes that live in the control-flow sequence.
type Fixed interface {
    Node
    fixed()
}

// FixedWithNext is implemented by fixed nodes with exactly one successor.
type FixedWithNext interface {
    Fixed
    fixedWithNext()
}

type NodeBase struct {
    id   ID
    pred ID
    next ID
    g    *Graph
}

func (self *NodeBase) base() *NodeBase {
    return self
}

// Id returns the ID of this node, NoNode if it has not been added to a graph.
func (self *NodeBase) Id() ID {
    if self.g == nil {
        return NoNode
    } else {
        return self.id
    }
}

// Graph is the node arena of a single compilation unit. It is not safe for
// concurrent use; each compilation owns its graph exclusively.
type Graph struct {
    Name  string
    nodes []Node
    start ID
}

// NewGraph creates an empty graph that only contains the start node.
func NewGraph(name string) *Graph {
    ret := &Graph{Name: name}
    ret.start = ret.Add(new(Start))
    return ret
}

func (self *Graph) Start() ID {
    return self.start
}

func (self *Graph) Len() int {
    return len(self.nodes)
}

// Add puts a node into the arena without linking it into the control flow.
func (self *Graph) Add(node Node) ID {
    nb := node.base()
    id := ID(len(self.nodes))

    /* a node belongs to exactly one graph */
    if nb.g != nil {
        panic(Invariant(node, "node is already in a graph"))
    }

    /* add to the arena */
    nb.g    = self
    nb.id   = id
    nb.pred = NoNode
    nb.next = NoNode
    self.nodes = append(self.nodes, node)
    return id
}

// Node returns the node with the given ID.
func (self *Graph) Node(id ID) Node {
    if id < 0 || int(id) >= len(self.nodes) {
        panic(fmt.Sprintf("ir: node %s is out of range", id))
    } else {
        return self.nodes[id]
    }
}

// Predecessor returns the control-flow predecessor of a fixed node.
func (self *Graph) Predecessor(id ID) ID {
    return self.Node(id).base().pred
}

// Next returns the control-flow successor of a fixed node with next.
func (self *Graph) Next(id ID) ID {
    return self.Node(id).base().next
}

// Successors returns every control-flow successor of a fixed node.
func (self *Graph) Successors(id ID) []ID {
    switch n := self.Node(id).(type) {
        case *If     : return []ID { n.True, n.False }
        case *End    : if n.Merge == NoNode { return nil } else { return []ID { n.Merge } }
        case *Return : return nil
        default      : if nx := n.base().next; nx == NoNode { return nil } else { return []ID { nx } }
    }
}

// StampOf returns the stamp of the value produced by a node, or the illegal
// stamp if the node does not produce a value.
func (self *Graph) StampOf(id ID) Stamp {
    if id == NoNode {
        return Stamp{}
    } else if v, ok := self.Node(id).(Stamped); ok {
        return v.Stamp()
    } else {
        return Stamp{}
    }
}

// Access returns the access node with the given ID.
func (self *Graph) Access(id ID) Access {
    if v, ok := self.Node(id).(Access); ok {
        return v
    } else {
        panic(Invariant(self.Node(id), "not an access node"))
    }
}

// AddressBase returns the object base of an address expression, or NoNode if
// the address is computed without a base.
func (self *Graph) AddressBase(addr ID) ID {
    if addr == NoNode {
        return NoNode
    } else if v, ok := self.Node(addr).(*OffsetAddress); ok {
        return v.Base
    } else {
        return NoNode
    }
}

func (self *Graph) fixedWithNext(id ID) *NodeBase {
    if n := self.Node(id); !isFixedWithNext(n) {
        panic(Invariant(n, "not a fixed node with a successor"))
    } else {
        return n.base()
    }
}

func (self *Graph) unlinked(id ID) *NodeBase {
    nb := self.fixedWithNext(id)

    /* the node must be floating in the arena */
    if nb.pred != NoNode || nb.next != NoNode || id == self.start {
        panic(Invariant(self.nodes[id], "node is already linked"))
    }

    /* safe to link */
    return nb
}

// AddAfterFixed links the unlinked fixed node `id` right after `anchor`.
func (self *Graph) AddAfterFixed(anchor ID, id ID) {
    nb := self.unlinked(id)
    ab := self.fixedWithNext(anchor)

    /* splice after the anchor */
    if nb.pred, nb.next = anchor, ab.next; ab.next != NoNode {
        self.nodes[ab.next].base().pred = id
    }

    /* update the anchor */
    ab.next = id
}

// AddBeforeFixed links the unlinked fixed node `id` right before `anchor`.
func (self *Graph) AddBeforeFixed(anchor ID, id ID) {
    nb := self.unlinked(id)
    ab := self.Node(anchor).base()

    /* the anchor must have a straight-line predecessor */
    if ab.pred == NoNode || !isFixedWithNext(self.nodes[ab.pred]) {
        panic(Invariant(self.nodes[anchor], "cannot insert before a node without a straight-line predecessor"))
    }

    /* splice before the anchor */
    pb := self.nodes[ab.pred].base()
    nb.pred, nb.next = ab.pred, anchor
    pb.next, ab.pred = id, id
}

// ReplaceFixedWithFixed puts the unlinked fixed node `rep` in the place of
// `old`, and redirects every usage of `old` to `rep`.
func (self *Graph) ReplaceFixedWithFixed(old ID, rep ID) {
    nb := self.unlinked(rep)
    ob := self.fixedWithNext(old)

    /* take over the links */
    nb.pred, nb.next = ob.pred, ob.next
    ob.pred, ob.next = NoNode, NoNode

    /* update the neighbours */
    if nb.pred != NoNode { self.nodes[nb.pred].base().next = rep }
    if nb.next != NoNode { self.nodes[nb.next].base().pred = rep }

    /* redirect all usages */
    for _, v := range self.nodes {
        if u, ok := v.(Usages); ok {
            for _, r := range u.Usages() {
                if *r == old {
                    *r = rep
                }
            }
        }
    }
}

// FixedNodes returns all reachable fixed nodes in breadth-first control-flow
// order, starting from the start node.
func (self *Graph) FixedNodes() []ID {
    q := lane.NewQueue()
    vis := map[ID]bool { self.start: true }
    ret := make([]ID, 0, len(self.nodes))

    /* walk the control flow */
    for q.Enqueue(self.start); !q.Empty(); {
        id := q.Dequeue().(ID)
        ret = append(ret, id)

        /* enqueue unvisited successors */
        for _, s := range self.Successors(id) {
            if !vis[s] {
                vis[s] = true
                q.Enqueue(s)
            }
        }
    }

    /* all done */
    return ret
}

// Dump renders the fixed nodes of the graph, one per line.
func (self *Graph) Dump() string {
    ids := self.FixedNodes()
    buf := make([]string, 0, len(ids))

    /* print every fixed node */
    for _, id := range ids {
        buf = append(buf, fmt.Sprintf("%6s | %s", id, self.nodes[id]))
    }

    /* join them together */
    return fmt.Sprintf(
        "Graph %s {\n%s\n}",
        self.Name,
        strings.Join(buf, "\n"),
    )
}

func isFixedWithNext(node Node) bool {
    _, ok := node.(FixedWithNext)
    return ok
}
