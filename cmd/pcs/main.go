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

// pcs: a tool computing place capability summaries.
// -config Given a path for a .yaml file, loads the analysis options from it.
// -input  Given a path for a .json file, analyzes the function bodies it
//         contains instead of the built-in demo bodies.
// -viz    Given a path for a folder, writes dot and json visualizations of
//         every analyzed function into it.

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/pcs"
	"github.com/awslabs/pcs-go-tools/analysis/viz"
	"github.com/awslabs/pcs-go-tools/internal/formatutil"
)

var (
	configPath = flag.String("config", "", "Config file path for the analysis")
	inputPath  = flag.String("input", "", "JSON file with function bodies to analyze")
	vizDir     = flag.String("viz", "", "Write dot and json output into this directory")
	verbose    = flag.Bool("v", false, "Verbose printing on standard output")
)

const usage = ` Compute place capability summaries.
Usage:
    pcs [options]
Examples:
% pcs -input bodies.json -config config.yaml -viz out/
Run without -input to analyze the built-in demo bodies.
`

func main() {
	flag.Parse()

	if flag.NArg() != 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	var err error
	cfg := config.NewDefault()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
	}
	if *vizDir != "" {
		cfg.VizDir = *vizDir
		cfg.VizDot = true
		cfg.VizJSON = true
	}
	if *verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)

	inputs := demoInputs()
	if *inputPath != "" {
		inputs, err = loadInputs(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load input %s: %v\n", *inputPath, err)
			os.Exit(1)
		}
	}

	start := time.Now()
	results := pcs.RunAll(inputs, cfg, logger)
	logger.Infof("Analysis took %3.4f s", time.Since(start).Seconds())

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := false
	for _, name := range names {
		res := results[name]
		if res.Ok() {
			fmt.Printf("%s %s\n", formatutil.Green("ok"), name)
		} else {
			failed = true
			fmt.Printf("%s %s\n", formatutil.Red("failed"), name)
			for _, rerr := range res.Errors {
				fmt.Printf("  %v\n", rerr)
			}
		}
		if *verbose {
			printSummary(res)
		}
	}

	if cfg.VizDot || cfg.VizJSON {
		if err := viz.WriteAll(results, cfg, logger); err != nil {
			fmt.Fprintf(os.Stderr, "could not write visualizations: %v\n", err)
			os.Exit(1)
		}
		logger.Infof("Visualizations written under %s", cfg.VizDir)
	}

	if failed {
		os.Exit(1)
	}
}

func printSummary(res *pcs.Result) {
	for _, br := range res.Blocks {
		if br == nil {
			continue
		}
		fmt.Printf("  %s (%d iterations) entry %s\n",
			formatutil.Bold(br.Block.String()), br.Iterations, br.EntrySummary)
		for i := range br.Statements {
			sr := &br.Statements[i]
			fmt.Printf("    %v: %s\n", sr.Loc, formatutil.Sanitize(sr.Statement))
			for _, op := range sr.RepacksStart {
				fmt.Printf("      pre  %v\n", op)
			}
			for _, op := range sr.RepacksMiddle {
				fmt.Printf("      post %v\n", op)
			}
			for _, a := range sr.ExtraStart {
				fmt.Printf("      kill %v\n", a.Edge.Kind)
			}
			for _, a := range sr.ExtraMiddle {
				fmt.Printf("      kill %v\n", a.Edge.Kind)
			}
		}
		tr := &br.Terminator
		fmt.Printf("    %v: %s\n", tr.Loc, formatutil.Sanitize(tr.Terminator))
		for _, succ := range tr.Succs {
			fmt.Printf("      -> %v (%d repacks)\n", succ.Block, len(succ.Repacks))
		}
	}
}
