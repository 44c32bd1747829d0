// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pcs

import (
	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// Input is one function to analyze: its body, the region bounds it was
// checked under, and the loan facts the borrow checker emitted for it.
// Facts may be nil when no fact bundle is available.
type Input struct {
	Body   *ir.Body
	Bounds []ir.OutlivesBound
	Facts  *facts.PoloniusInput
}

// RunAll analyzes every input whose function name passes the config's
// filter, keyed by function name.
func RunAll(inputs []Input, cfg *config.Config, logger *config.LogGroup) map[string]*Result {
	results := make(map[string]*Result)
	for _, in := range inputs {
		if !cfg.MatchFuncFilter(in.Body.Name) {
			logger.Debugf("skipping %s (filtered)", in.Body.Name)
			continue
		}
		logger.Infof("analyzing %s (%d blocks, %d locals)",
			in.Body.Name, len(in.Body.Blocks), len(in.Body.Locals))
		res := Run(in, cfg, logger)
		for _, err := range res.Errors {
			logger.Errorf("%s: %v", in.Body.Name, err)
		}
		results[in.Body.Name] = res
	}
	return results
}
