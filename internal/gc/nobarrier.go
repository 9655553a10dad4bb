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

// NoBarrier is the policy for collectors that need no barriers at all.
type NoBarrier struct{}

func NewNoBarrier() *NoBarrier {
    return new(NoBarrier)
}

func (self *NoBarrier) Name() string {
    return "none"
}

func (self *NoBarrier) FieldReadBarrierType(_ *meta.Field, _ meta.Kind) ir.BarrierType {
    return ir.BarrierNone
}

func (self *NoBarrier) FieldWriteBarrierType(_ *meta.Field, _ meta.Kind) ir.BarrierType {
    return ir.BarrierNone
}

func (self *NoBarrier) ArrayWriteBarrierType(_ meta.Kind) ir.BarrierType {
    return ir.BarrierNone
}

func (self *NoBarrier) ReadBarrierType(_ *ir.Graph, _ ir.LocationIdentity, _ ir.ID, _ ir.Stamp) ir.BarrierType {
    return ir.BarrierNone
}

func (self *NoBarrier) WriteBarrierType(_ *ir.Graph, _ *ir.RawStore) ir.BarrierType {
    return ir.BarrierNone
}

func (self *NoBarrier) ReadWriteBarrier(_ *ir.Graph, _ ir.ID, _ ir.ID) ir.BarrierType {
    return ir.BarrierNone
}

// AddBarriers only checks that nobody asked for a barrier.
func (self *NoBarrier) AddBarriers(g *ir.Graph, id ir.ID) {
    if v, ok := g.Node(id).(ir.Access); !ok {
        panic(withPolicy(self, ir.Missed(g.Node(id), "not an access node")))
    } else if bt := v.BarrierType(); bt != ir.BarrierNone {
        panic(withPolicy(self, ir.Missed(v, "unexpected barrier type %s", bt)))
    }
}

func (self *NoBarrier) MayNeedPreWriteBarrier(_ meta.Kind) bool {
    return false
}

func (self *NoBarrier) PostAllocationInitBarrier(bt ir.BarrierType) ir.BarrierType {
    return bt
}

func (self *NoBarrier) ShouldAddBarriersInStage(stage opts.Stage) bool {
    return defaultShouldAddBarriersInStage(stage)
}
