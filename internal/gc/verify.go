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
)

// Verifier is implemented by policies that can check a finished graph. A
// mismatch panics with an invariant violation.
type Verifier interface {
    VerifyBarriers(g *ir.Graph)
}

// VerifyPass runs the verifier of a policy, in the same stage the barriers
// were added in.
type VerifyPass struct {
    Policy   Policy
    Verifier Verifier
    Stage    opts.Stage
}

func (self *VerifyPass) Apply(g *ir.Graph) {
    if self.Policy.ShouldAddBarriersInStage(self.Stage) {
        self.Verifier.VerifyBarriers(g)
    }
}
