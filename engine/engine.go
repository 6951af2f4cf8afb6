// Package engine is the Orchestrator: it drives FileWalker -> JavaParser
// -> ClassIndex + CallGraph -> ChainFinder -> ChainScorer for the AST
// path, runs TemplateScanner over template-eligible files, merges both
// finding sets, and exposes progress/stop/pause to the caller.
package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/wardenscan/javasentry/callgraph"
	"github.com/wardenscan/javasentry/chainfinder"
	"github.com/wardenscan/javasentry/classindex"
	"github.com/wardenscan/javasentry/javaparser"
	"github.com/wardenscan/javasentry/model"
	"github.com/wardenscan/javasentry/rulematch"
	"github.com/wardenscan/javasentry/rules"
	"github.com/wardenscan/javasentry/scorer"
	"github.com/wardenscan/javasentry/template"
	"github.com/wardenscan/javasentry/walker"
)

// astWorkerThreshold is the file-count above which AST parsing switches
// from sequential to a worker pool, to avoid pool overhead on small
// projects.
const astWorkerThreshold = 10

// astHeartbeatEvery invokes the progress callback after this many parsed
// files.
const astHeartbeatEvery = 10

// templateHeartbeatEvery invokes the progress callback after this many
// template emissions.
const templateHeartbeatEvery = 50

// ScanStats are non-fatal run diagnostics surfaced alongside the
// findings, for callers that want to report on what was skipped.
type ScanStats struct {
	ScannedDirs      int
	ScannedFiles     int
	ParsedFiles      int
	SkippedFiles     int
	BadPatterns      int
	TemplateFindings int
	ASTFindings      int
	Errors           []error
}

// ProgressFunc receives the finding list accumulated so far; callers must
// tolerate repeated calls and append-only growth.
type ProgressFunc func(partial []model.Finding)

// Engine runs one scan of a project directory against a loaded rule
// store.
type Engine struct {
	store   *rules.Store
	control *Control
}

// New builds an Engine bound to store. Template rules are compiled afresh
// from store on every Run.
func New(store *rules.Store) *Engine {
	return &Engine{store: store, control: &Control{}}
}

// Control returns the engine's stop/pause signal, for callers that want
// to cancel or pause a running scan from another goroutine.
func (e *Engine) Control() *Control { return e.control }

// Run walks root, builds the AST call graph, backtracks every configured
// sink to its entry points, scores the resulting chains, runs the
// template scanner over eligible files, and returns the merged, findings
// plus run diagnostics. progress, if non-nil, is invoked at heartbeats
// and once more at the very end.
func (e *Engine) Run(root string, progress ProgressFunc) ([]model.Finding, ScanStats) {
	stats := ScanStats{}
	flags := e.store.Flags

	ruleExts := map[string]bool{}
	for _, ext := range flags.IncludeExts {
		ruleExts[ext] = true
	}
	for _, tr := range e.store.TemplateRules {
		for _, ext := range tr.FileExts {
			ruleExts[ext] = true
		}
	}

	w, err := walker.New(walker.Options{Root: root, IgnoreSkipDirs: flags.IgnoreSkipDirs, TemplateExts: ruleExts})
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		return nil, stats
	}

	var javaFiles, templateFiles []walker.File
	_ = w.Walk(func(f walker.File) error {
		stats.ScannedFiles++
		if walker.IsJavaSource(f.Ext) {
			javaFiles = append(javaFiles, f)
		}
		if !flags.DisableTemplateScan && walker.IsTemplateEligible(f.Ext, ruleExts) {
			templateFiles = append(templateFiles, f)
		}
		return nil
	})

	var findings []model.Finding
	var mu sync.Mutex
	publish := func(f model.Finding) {
		mu.Lock()
		findings = append(findings, f)
		mu.Unlock()
	}
	snapshot := func() []model.Finding {
		mu.Lock()
		defer mu.Unlock()
		out := make([]model.Finding, len(findings))
		copy(out, findings)
		return out
	}

	index, graph := e.buildGraph(javaFiles, &stats, progress, snapshot)
	if e.control.Stopped() {
		if progress != nil {
			progress(snapshot())
		}
		return snapshot(), stats
	}

	reverse := graph.BuildReverse()
	e.runChainFinder(reverse, index, flags, &stats, publish)

	if !flags.DisableTemplateScan {
		e.runTemplateScan(templateFiles, &stats, publish, progress, snapshot)
	}

	if progress != nil {
		progress(snapshot())
	}
	return snapshot(), stats
}

// buildGraph runs JavaParser over every .java file (sequentially, or via
// a bounded worker pool above astWorkerThreshold files), merging every
// result into a shared ClassIndex and CallGraph behind one mutex.
func (e *Engine) buildGraph(files []walker.File, stats *ScanStats, progress ProgressFunc, snapshot func() []model.Finding) (*classindex.Index, *callgraph.Graph) {
	index := classindex.New()
	graph := callgraph.New()
	parser := javaparser.New()

	var mu sync.Mutex
	var parsedCount int64

	process := func(f walker.File) {
		if e.control.ShouldStop() {
			return
		}
		result, err := parser.Parse(f.AbsPath)
		if err != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, &ASTParseError{Path: f.RelPath, Err: err})
			stats.SkippedFiles++
			mu.Unlock()
			return
		}
		if result == nil {
			return
		}

		mu.Lock()
		index.Merge(result.Tree, result.Source, f.RelPath)
		callgraph.Build(graph, result.Tree, result.Source)
		stats.ParsedFiles++
		mu.Unlock()

		n := atomic.AddInt64(&parsedCount, 1)
		if progress != nil && n%astHeartbeatEvery == 0 {
			progress(snapshot())
		}
	}

	if len(files) > astWorkerThreshold {
		workers := runtime.NumCPU()
		if workers > 4 {
			workers = 4
		}
		if workers < 1 {
			workers = 1
		}
		jobs := make(chan walker.File)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for f := range jobs {
					process(f)
				}
			}()
		}
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
		wg.Wait()
	} else {
		for _, f := range files {
			process(f)
		}
	}

	return index, graph
}

// runChainFinder backtracks every expanded sink signature, scores the
// resulting chains, and publishes one aggregated Finding per sink that
// produced at least one complete chain.
func (e *Engine) runChainFinder(reverse *callgraph.Reverse, index *classindex.Index, flags rules.Flags, stats *ScanStats, publish func(model.Finding)) {
	depthCap := chainfinder.EffectiveDepth(resolvedDepth(flags))

	for _, target := range rulematch.SinkSignatures(e.store.SinkRules) {
		if e.control.ShouldStop() {
			return
		}

		chains := chainfinder.Find(target.Signature, depthCap, reverse, index, e.control.ShouldStop)
		if len(chains) == 0 {
			continue
		}

		var scores []scorer.ChainScore
		for _, chain := range chains {
			if flags.LiteFast {
				// Lite mode skips chain enrichment: confidence 0.5,
				// empty evidence sets, still reports the chain.
				scores = append(scores, scorer.ChainScore{Confidence: 0.5})
				continue
			}
			scores = append(scores, scorer.Score(chain, target.Rule.VulType, e.store, index))
		}

		confidence, sanitizedBy, sources, patterns := scorer.AggregateFindingEvidence(scores)
		relPath, _ := index.ClassFile(target.Signature.Class())

		publish(model.Finding{
			VulType:     target.Rule.VulType,
			SinkDesc:    target.Rule.SinkDesc,
			Severity:    target.Rule.SeverityLevel,
			Sink:        target.Signature,
			CallChains:  chains,
			ChainCount:  len(chains),
			Confidence:  confidence,
			SanitizedBy: sanitizedBy,
			Sources:     sources,
			Patterns:    patterns,
			FilePath:    relPath,
			ScanMode:    model.ScanModeAST,
		})
	}
}

func resolvedDepth(flags rules.Flags) int {
	if flags.Depth > 0 {
		return flags.Depth
	}
	return rules.DefaultDepth
}

// runTemplateScan runs the (sequential) regex scanner over every
// template-eligible file, reading each under the same size and line caps
// used for AST files; the template scanner does its own decoding.
func (e *Engine) runTemplateScan(files []walker.File, stats *ScanStats, publish func(model.Finding), progress ProgressFunc, snapshot func() []model.Finding) {
	scanner := template.New(e.store)
	var emittedCount int

	for _, f := range files {
		if e.control.ShouldStop() {
			return
		}
		data, err := readTemplateFile(f.AbsPath)
		if err != nil {
			stats.Errors = append(stats.Errors, &FileProcessingError{Path: f.RelPath, Err: err})
			continue
		}

		findings := scanner.ScanFile(f.RelPath, data, func() {
			emittedCount++
			if progress != nil && emittedCount%templateHeartbeatEvery == 0 {
				progress(snapshot())
			}
		})
		for _, fnd := range findings {
			stats.TemplateFindings++
			publish(fnd)
		}
	}
}
