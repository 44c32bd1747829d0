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

package viz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/freepcs"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcs"
	"github.com/awslabs/pcs-go-tools/analysis/unblock"
	"github.com/awslabs/pcs-go-tools/internal/funcutil"
)

var phases = []borrows.Phase{
	borrows.BeforeStart, borrows.BeforeAfter, borrows.Start, borrows.After,
}

// WriteAll emits the visualization artifacts for every analyzed function
// under cfg.Options.VizDir: one subdirectory per function holding dot
// graphs and per-block json, plus a top-level functions.json index.
func WriteAll(results map[string]*pcs.Result, cfg *config.Config, logger *config.LogGroup) error {
	dir := cfg.Options.VizDir
	if dir == "" {
		return fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make([]functionEntry, 0, len(names))
	for _, name := range names {
		sub := filepath.Join(dir, sanitizeName(name))
		if err := WriteFunction(sub, results[name], cfg); err != nil {
			return fmt.Errorf("function %s: %w", name, err)
		}
		logger.Debugf("wrote visualization for %s under %s", name, sub)
		index = append(index, functionEntry{
			Name: name,
			Dir:  sanitizeName(name),
			Ok:   results[name].Ok(),
		})
	}
	return writeJSON(filepath.Join(dir, "functions.json"), index)
}

// WriteFunction emits the artifacts of one result into dir.
func WriteFunction(dir string, r *pcs.Result, cfg *config.Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if cfg.Options.VizJSON {
		if err := writeJSON(filepath.Join(dir, "mir.json"), bodyDump(r.Body)); err != nil {
			return err
		}
	}
	for _, br := range r.Blocks {
		if br == nil {
			continue
		}
		if cfg.Options.VizDot {
			if err := writeBlockDots(dir, br); err != nil {
				return err
			}
		}
		if cfg.Options.VizJSON {
			path := filepath.Join(dir, fmt.Sprintf("block_%d_iterations.json", br.Block))
			if err := writeJSON(path, blockDump(br)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeBlockDots(dir string, br *pcs.BlockResult) error {
	writeOne := func(stmt, iteration int, dom *borrows.Domain) error {
		for _, ph := range phases {
			name := fmt.Sprintf("%d_stmt_%d_iteration_%d_%s.dot",
				br.Block, stmt, iteration, ph)
			f, err := os.Create(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			werr := WriteGraphDot(f, fmt.Sprintf("bb%d_%d_%s", br.Block, stmt, ph), dom.At(ph))
			cerr := f.Close()
			if werr != nil {
				return werr
			}
			if cerr != nil {
				return cerr
			}
		}
		return nil
	}
	for _, it := range br.History {
		for stmt, dom := range it.Domains {
			if dom == nil {
				continue
			}
			if err := writeOne(stmt, it.Iteration, dom); err != nil {
				return err
			}
		}
	}
	if len(br.History) > 0 {
		return nil
	}
	// without recorded iterations fall back to the converged state
	for i := range br.Statements {
		if br.Statements[i].Borrows == nil {
			continue
		}
		if err := writeOne(i, br.Iterations, br.Statements[i].Borrows); err != nil {
			return err
		}
	}
	if br.Terminator.Borrows != nil {
		if err := writeOne(len(br.Statements), br.Iterations, br.Terminator.Borrows); err != nil {
			return err
		}
	}
	return nil
}

type functionEntry struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
	Ok   bool   `json:"ok"`
}

type localDump struct {
	Local      string `json:"local"`
	Name       string `json:"name,omitempty"`
	Type       string `json:"type"`
	AlwaysLive bool   `json:"always_live,omitempty"`
}

type blockBodyDump struct {
	Block      string   `json:"block"`
	Statements []string `json:"statements"`
	Terminator string   `json:"terminator"`
	Succs      []string `json:"succs"`
}

type bodyJSON struct {
	Name     string          `json:"name"`
	ArgCount int             `json:"arg_count"`
	Locals   []localDump     `json:"locals"`
	Blocks   []blockBodyDump `json:"blocks"`
}

func bodyDump(body *ir.Body) bodyJSON {
	d := bodyJSON{Name: body.Name, ArgCount: body.ArgCount}
	for i, decl := range body.Locals {
		d.Locals = append(d.Locals, localDump{
			Local:      ir.Local(i).String(),
			Name:       decl.Name,
			Type:       fmt.Sprint(decl.Type),
			AlwaysLive: decl.AlwaysLive,
		})
	}
	for _, b := range body.Blocks {
		bd := blockBodyDump{
			Block:      b.Index.String(),
			Terminator: fmt.Sprint(b.Terminator),
		}
		for _, s := range b.Statements {
			bd.Statements = append(bd.Statements, fmt.Sprint(s))
		}
		for _, succ := range b.Terminator.Successors() {
			bd.Succs = append(bd.Succs, succ.String())
		}
		d.Blocks = append(d.Blocks, bd)
	}
	return d
}

type statementDump struct {
	Location      string   `json:"location"`
	Statement     string   `json:"statement"`
	RepacksStart  []string `json:"repacks_start,omitempty"`
	RepacksMiddle []string `json:"repacks_middle,omitempty"`
	ExtraStart    []string `json:"extra_start,omitempty"`
	ExtraMiddle   []string `json:"extra_middle,omitempty"`
	SummaryBefore string   `json:"summary_before"`
	SummaryAfter  string   `json:"summary_after"`
	BorrowEdges   []string `json:"borrow_edges,omitempty"`
}

type succDump struct {
	Block   string   `json:"block"`
	Repacks []string `json:"repacks,omitempty"`
	Unblock []string `json:"unblock,omitempty"`
}

type blockJSON struct {
	Block        string          `json:"block"`
	Iterations   int             `json:"iterations"`
	EntrySummary string          `json:"entry_summary"`
	Statements   []statementDump `json:"statements"`
	Terminator   statementDump   `json:"terminator"`
	Succs        []succDump      `json:"succs"`
}

func blockDump(br *pcs.BlockResult) blockJSON {
	d := blockJSON{
		Block:        br.Block.String(),
		Iterations:   br.Iterations,
		EntrySummary: br.EntrySummary.String(),
	}
	for i := range br.Statements {
		sr := &br.Statements[i]
		d.Statements = append(d.Statements, statementDump{
			Location:      sr.Loc.String(),
			Statement:     sr.Statement,
			RepacksStart:  repackStrings(sr.RepacksStart),
			RepacksMiddle: repackStrings(sr.RepacksMiddle),
			ExtraStart:    actionStrings(sr.ExtraStart),
			ExtraMiddle:   actionStrings(sr.ExtraMiddle),
			SummaryBefore: summaryString(sr.SummaryBefore),
			SummaryAfter:  summaryString(sr.SummaryAfter),
			BorrowEdges:   edgeStrings(sr.Borrows),
		})
	}
	tr := &br.Terminator
	d.Terminator = statementDump{
		Location:      tr.Loc.String(),
		Statement:     tr.Terminator,
		RepacksStart:  repackStrings(tr.RepacksStart),
		ExtraStart:    actionStrings(tr.ExtraStart),
		SummaryBefore: summaryString(tr.SummaryBefore),
		SummaryAfter:  summaryString(tr.SummaryAfter),
		BorrowEdges:   edgeStrings(tr.Borrows),
	}
	for _, succ := range tr.Succs {
		sd := succDump{Block: succ.Block.String(), Repacks: repackStrings(succ.Repacks)}
		if succ.Bridge != nil {
			sd.Unblock = actionStrings(succ.Bridge.UnblockActions)
		}
		d.Succs = append(d.Succs, sd)
	}
	return d
}

func repackStrings(ops []freepcs.RepackOp) []string {
	return funcutil.Map(ops, func(op freepcs.RepackOp) string { return op.String() })
}

func actionStrings(actions []unblock.Action) []string {
	return funcutil.Map(actions, func(a unblock.Action) string { return fmt.Sprint(a.Edge.Kind) })
}

func edgeStrings(dom *borrows.Domain) []string {
	if dom == nil || dom.After == nil {
		return nil
	}
	var out []string
	for _, e := range dom.After.Graph.Edges() {
		out = append(out, e.String())
	}
	return out
}

func summaryString(s *freepcs.Summary) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "<", "_", ">", "_", " ", "_")
	return r.Replace(name)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
