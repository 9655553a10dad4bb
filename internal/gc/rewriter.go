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

package gc

import (
    `github.com/cloudwego/mbarrier/internal/opts`
    `github.com/cloudwego/mbarrier/ir`
    `github.com/cloudwego/mbarrier/meta`
)

type Pass interface {
    Apply(g *ir.Graph)
}

type PassDescriptor struct {
    Pass Pass
    Name string
}

// NewPasses builds the passes that run for one compilation unit under `p`.
func NewPasses(p Policy, md meta.Provider, o opts.Options) []PassDescriptor {
    ret := []PassDescriptor {
        { Name: "Barrier Insertion", Pass: &Rewriter { Policy: p, Meta: md, Stage: o.Stage } },
    }

    /* add the verifier if the policy has one */
    if v, ok := p.(Verifier); ok && o.Verify {
        ret = append(ret, PassDescriptor {
            Name : "Barrier Verification",
            Pass : &VerifyPass { Policy: p, Verifier: v, Stage: o.Stage },
        })
    }

    /* all done */
    return ret
}

func Compile(g *ir.Graph, passes []PassDescriptor) {
    for _, p := range passes {
        p.Pass.Apply(g)
    }
}

// Rewriter decides the barrier type of every access of a compilation unit and
// lets the policy place the barrier nodes.
type Rewriter struct {
    Policy Policy
    Meta   meta.Provider
    Stage  opts.Stage
}

func (self *Rewriter) Apply(g *ir.Graph) {
    var acc []ir.ID
    var pol = self.Policy

    /* not our stage */
    if !pol.ShouldAddBarriersInStage(self.Stage) {
        return
    }

    /* Phase 1: snapshot the accesses, the graph changes under our feet later */
    for _, id := range g.FixedNodes() {
        if _, ok := g.Node(id).(ir.Access); ok {
            acc = append(acc, id)
        }
    }

    /* Phase 2: decide the barrier types that upstream left open */
    for _, id := range acc {
        if v := g.Access(id); !v.HasBarrierType() {
            v.SetBarrierType(Classify(pol, self.Meta, g, id))
        }
    }

    /* Phase 3: barriered raw stores are plain heap writes */
    for i, id := range acc {
        if v, ok := g.Node(id).(*ir.RawStore); ok && v.BarrierType() != ir.BarrierNone {
            acc[i] = canonicalizeRawStore(g, id, v)
        }
    }

    /* Phase 4: place the barriers */
    for _, id := range acc {
        pol.AddBarriers(g, id)
    }
}

func canonicalizeRawStore(g *ir.Graph, id ir.ID, v *ir.RawStore) ir.ID {
    ab := ir.WithBarrier(v.Addr, v.Loc, v.BarrierType())
    ab.NullCheck = v.NullCheck

    /* replace with a plain write */
    rep := g.Add(&ir.Write {
        AccessBase : ab,
        Value      : v.Value,
    })

    /* splice it in */
    g.ReplaceFixedWithFixed(id, rep)
    return rep
}

// Classify derives the barrier type of the access `id` under `p`, from its
// location and the stamps of its operands.
func Classify(p Policy, md meta.Provider, g *ir.Graph, id ir.ID) ir.BarrierType {
    var bt ir.BarrierType
    var ac = g.Access(id)
    var lc = ac.Location()

    /* classify by shape */
    switch v := g.Node(id).(type) {
        case *ir.Read: {
            if lc.IsField() && lc.Field != nil {
                bt = p.FieldReadBarrierType(lc.Field, md.StorageKind(lc.Field))
            } else {
                bt = p.ReadBarrierType(g, lc, v.Addr, v.LoadStamp)
            }
        }

        /* plain writes */
        case *ir.Write: {
            if lc.IsField() && lc.Field != nil {
                bt = p.FieldWriteBarrierType(lc.Field, md.StorageKind(lc.Field))
            } else if lc.IsArray() {
                bt = p.ArrayWriteBarrierType(lc.Elem)
            } else {
                bt = p.ReadWriteBarrier(g, g.AddressBase(v.Addr), v.Value)
            }
        }

        /* atomic updates */
        case *ir.CompareAndSwap     : bt = p.ReadWriteBarrier(g, g.AddressBase(v.Addr), v.NewValue)
        case *ir.AtomicReadAndWrite : bt = p.ReadWriteBarrier(g, g.AddressBase(v.Addr), v.NewValue)
        case *ir.RangeWrite         : bt = p.ArrayWriteBarrierType(v.ElemKind)
        case *ir.RawStore           : bt = p.WriteBarrierType(g, v)
        default                     : panic(withPolicy(p, ir.Missed(v, "not an access node")))
    }

    /* initializing stores may use a cheaper barrier */
    switch ac.(type) {
        case *ir.Write, *ir.RangeWrite, *ir.RawStore: {
            if lc.IsInit() {
                bt = p.PostAllocationInitBarrier(bt)
            }
        }
    }

    /* all done */
    return bt
}
