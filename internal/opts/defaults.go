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

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultCollector = CollectorCard
	_DefaultWorkers   = 4 // concurrent compilation units in InsertAll
)

var (
	DefaultCollector  = parseCollector("MBARRIER_COLLECTOR", _DefaultCollector)
	Verify            = parseBool("MBARRIER_VERIFY", false)
	DeferInitBarriers = parseBool("MBARRIER_DEFER_INIT_BARRIERS", false)
	Workers           = parseOrDefault("MBARRIER_WORKERS", _DefaultWorkers, 1)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("mbarrier: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("mbarrier: value too small for " + key)
	} else {
		return ret
	}
}

func parseBool(key string, def bool) bool {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseBool(env); err != nil {
		panic("mbarrier: invalid value for " + key)
	} else {
		return val
	}
}

func parseCollector(key string, def Collector) Collector {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val := Collector(env); !val.IsValid() {
		panic("mbarrier: invalid collector for " + key + ": " + env)
	} else {
		return val
	}
}
