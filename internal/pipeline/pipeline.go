// Package pipeline orchestrates one analysis run through its stages:
// platform detection, agent execution, and aggregation. Agents run
// concurrently with a bounded group; every stage transition is published to
// an optional event sink consumed by the progress UI and the logger.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelworks/cmslens/internal/agent"
	"github.com/kestrelworks/cmslens/internal/analysis"
	"github.com/kestrelworks/cmslens/internal/baseline"
	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/plugin"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/rule"
	"github.com/kestrelworks/cmslens/internal/scan"
)

// AgentParallelism bounds how many agents scan at once. Each agent runs
// its own bounded file workers, so this stays small.
const AgentParallelism = 2

// Options configures one run.
type Options struct {
	Plugin *plugin.Plugin
	// AgentNames narrows the run to specific agents. Empty means all.
	AgentNames []string
	// SecurityOnly restricts the run to security-category agents.
	SecurityOnly bool

	Root   string
	Ignore *ignorefile.Matcher
	// Only restricts scanning to these relative paths (--changes-only).
	Only []string

	MaxFiles    int
	MinSeverity rule.Severity
	Baseline    *baseline.Baseline

	Logger *zap.Logger
	Events Sink

	// Clock and ID are injectable for tests.
	Clock func() time.Time
	ID    func() string
}

// Run executes the pipeline and assembles the report input.
func Run(ctx context.Context, opts Options) (report.Run, error) {
	if opts.Plugin == nil {
		return report.Run{}, fmt.Errorf("pipeline: plugin is required")
	}
	if opts.Root == "" {
		return report.Run{}, fmt.Errorf("pipeline: root is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	newID := opts.ID
	if newID == nil {
		newID = uuid.NewString
	}

	agents, err := selectAgents(opts)
	if err != nil {
		return report.Run{}, err
	}

	started := now()
	run := report.Run{
		ID:        newID(),
		Plugin:    opts.Plugin.Name(),
		StartedAt: started,
		Rules:     map[string]rule.Rule{},
	}

	opts.Events.send(Event{Type: EventStageStarted, Stage: StageDetect})
	detection, err := detect.Detect(os.DirFS(opts.Root))
	if err != nil {
		return report.Run{}, err
	}
	run.Platform = detection.Platform
	run.Confidence = detection.Confidence
	opts.Events.send(Event{Type: EventStageFinished, Stage: StageDetect})
	logger.Info("platform detected",
		zap.String("platform", string(detection.Platform)),
		zap.Float64("confidence", detection.Confidence))

	opts.Events.send(Event{Type: EventStageStarted, Stage: StageAgents})
	findings, stats, err := runAgents(ctx, opts, agents, logger)
	if err != nil {
		return report.Run{}, err
	}
	run.Stats = stats
	opts.Events.send(Event{Type: EventStageFinished, Stage: StageAgents})

	opts.Events.send(Event{Type: EventStageStarted, Stage: StageAggregate})
	run.Summary = analysis.Aggregate(findings, analysis.Options{
		MinSeverity: opts.MinSeverity,
		Baseline:    opts.Baseline,
	})
	opts.Events.send(Event{Type: EventStageFinished, Stage: StageAggregate})

	for _, a := range agents {
		run.AgentNames = append(run.AgentNames, a.Name)
		for _, compiled := range a.CompiledRules() {
			run.Rules[compiled.Code] = compiled.Rule
		}
	}
	run.Duration = now().Sub(started)
	logger.Info("run complete",
		zap.String("run", run.ID),
		zap.Int("findings", run.Summary.Total),
		zap.Int("score", run.Summary.Score))
	return run, nil
}

func selectAgents(opts Options) ([]*agent.Agent, error) {
	if opts.SecurityOnly {
		agents := opts.Plugin.Agents.Security()
		if len(agents) == 0 {
			return nil, fmt.Errorf("pipeline: plugin %s has no security agents", opts.Plugin.Name())
		}
		return agents, nil
	}
	if len(opts.AgentNames) == 0 {
		return opts.Plugin.Agents.All(), nil
	}
	var agents []*agent.Agent
	for _, name := range opts.AgentNames {
		a, err := opts.Plugin.Agents.Resolve(name)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func runAgents(ctx context.Context, opts Options, agents []*agent.Agent, logger *zap.Logger) ([]rule.Finding, scan.Stats, error) {
	var (
		mu       sync.Mutex
		findings []rule.Finding
		stats    scan.Stats
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(AgentParallelism)
	for _, a := range agents {
		group.Go(func() error {
			opts.Events.send(Event{Type: EventAgentStarted, Agent: a.Name})
			scanner := &scan.Scanner{
				Root:     opts.Root,
				Ignore:   opts.Ignore,
				MaxFiles: opts.MaxFiles,
				Only:     opts.Only,
			}
			agentFindings, agentStats, err := scanner.Run(groupCtx, a.CompiledRules(), func(relPath string) {
				opts.Events.send(Event{Type: EventFileScanned, Agent: a.Name, File: relPath})
			})
			if err != nil {
				opts.Events.send(Event{Type: EventAgentFinished, Agent: a.Name, Err: err})
				return fmt.Errorf("pipeline: agent %s: %w", a.Name, err)
			}
			opts.Events.send(Event{Type: EventAgentFinished, Agent: a.Name, Findings: len(agentFindings)})
			logger.Debug("agent finished",
				zap.String("agent", a.Name),
				zap.Int("findings", len(agentFindings)))
			mu.Lock()
			findings = append(findings, agentFindings...)
			if agentStats.FilesScanned > stats.FilesScanned {
				stats = agentStats
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, scan.Stats{}, err
	}
	return findings, stats, nil
}
