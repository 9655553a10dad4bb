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
    `sync/atomic`
)

var (
    UnitCount     uint64 = 0
    InsertedCount uint64 = 0
    ElidedCount   uint64 = 0
    VerifiedCount uint64 = 0
    FaultCount    uint64 = 0
)

func countInserted() {
    atomic.AddUint64(&InsertedCount, 1)
}

func countElided() {
    atomic.AddUint64(&ElidedCount, 1)
}
