/*
 * Copyright 2021 ByteDance Inc.
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

package mbarrier

import (
    `github.com/cloudwego/mbarrier/ir`
)

// Fault is an internal compiler error raised while placing or verifying the
// barriers of a compilation unit. It never concerns the program being
// compiled, the caller is expected to log it and fall back to a lower tier.
type Fault = ir.Fault

// FaultKind tells a missed case apart from an invariant violation.
type FaultKind = ir.FaultKind

const (
    MissedCase         = ir.MissedCase
    InvariantViolation = ir.InvariantViolation
)

// AsFault extracts the Fault from an error returned by Insert or InsertAll.
func AsFault(err error) (*Fault, bool) {
    f, ok := err.(*Fault)
    return f, ok
}
