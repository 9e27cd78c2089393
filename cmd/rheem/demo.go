package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saad749/rheem/internal/cardinality"
	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/cost"
	"github.com/saad749/rheem/internal/costmodel"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/exec"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/learner/execlog"
	"github.com/saad749/rheem/internal/mapping"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rlog"
	"github.com/saad749/rheem/platform"
	"github.com/saad749/rheem/platform/local"
)

var demoLogPath string

func init() {
	demoCmd.Flags().StringVar(&demoLogPath, "log", "", "append this run's execution log records here")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "run source([1..10]) -> map(x+1) -> collect end to end on the local platform",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobID := uuid.New()
	ctx = rlog.WithTags(ctx, "job", jobID.String())

	p, behaviors := buildDemoPlan()
	active := plan.ActivePlatforms{local.Platform: true}
	if err := plan.Sane(p, active); err != nil {
		return err
	}

	arena := optctx.NewArena()
	cardEngine := cardinality.NewEngine(arena, cardinality.ConstantFallback(0))
	if err := cardEngine.Push(ctx, p); err != nil {
		return err
	}

	model := costmodel.NewModel()
	model.Platforms[local.Platform] = costmodel.PlatformProfile{
		ToTime: cost.NewDefaultConverter(1, 0),
		ToCost: cost.TimeToCostConverter{RatePerMs: 1},
	}

	registry := mapping.NewRegistry(mapping.LocalMapping{})
	enumerator := &enumerate.Enumerator{
		Registry:      registry,
		Model:         model,
		ChannelGraph:  channel.NewGraph(nil),
		JunctionCache: channel.NewCache(),
		Arena:         arena,
		Active:        channel.ActivePlatforms(active),
	}

	enumeration, err := enumerator.Enumerate(ctx, p)
	if err != nil {
		return err
	}
	best := enumeration.Best(interval.Compare)
	if best == nil {
		return fmt.Errorf("no viable plan")
	}
	model.ComputeAll(ctx, arena, p)

	flow := exec.Lower(best)
	executor := local.NewExecutor(behaviors)
	driver := &exec.Driver{
		Enumerator:  enumerator,
		Cardinality: cardEngine,
		Arena:       arena,
		Platforms:   map[string]platform.Executor{local.Platform: executor},
	}

	var writer *execlog.Writer
	if demoLogPath != "" {
		w, err := execlog.OpenWriter(demoLogPath)
		if err != nil {
			return err
		}
		defer w.Close()
		writer = w
	}

	report, err := driver.ExecuteUntilBreakpoint(ctx, flow)
	if writer != nil {
		for _, sr := range report.Stages {
			for _, part := range sr.Partials {
				if err := writer.Append(execlog.FromPlatform(jobID.String(), part)); err != nil {
					rlog.Warningf(ctx, "execution log append failed: %v", err)
				}
			}
		}
	}
	if err != nil {
		return err
	}

	sinkTask, _ := flow.TaskFor(sinkID(p))
	var result []interface{}
	if sinkTask != nil && len(sinkTask.Inputs) > 0 {
		result = executor.Collected(sinkTask.Inputs[0])
	}

	rlog.Infof(ctx, "job finished: reason=%d stages=%d", report.Reason, len(report.Stages))
	fmt.Println(result)
	return nil
}

// buildDemoPlan constructs the single-platform pipeline
// source([1..10]) -> map(x+1) -> collect, plus the Behaviors the local
// platform needs to actually run it.
func buildDemoPlan() (*plan.Plan, *local.Behaviors) {
	b := plan.NewPlanBuilder()
	behaviors := local.NewBehaviors()

	sourceID := b.AllocID()
	source := plan.NewElementaryOperator(sourceID, "source", 0, 1)
	source.Outputs()[0].Estimator = func([]interval.CardinalityEstimate) interval.CardinalityEstimate {
		return interval.Exact(10)
	}
	b.Register(source)
	behaviors.Sources[sourceID] = func() []interface{} {
		vals := make([]interface{}, 10)
		for i := range vals {
			vals[i] = i + 1
		}
		return vals
	}

	mapID := b.AllocID()
	mapOp := plan.NewElementaryOperator(mapID, "map", 1, 1)
	mapOp.Outputs()[0].Estimator = cardinality.IdentityFallback
	b.Register(mapOp)
	behaviors.Maps[mapID] = func(v interface{}) interface{} { return v.(int) + 1 }

	collectID := b.AllocID()
	collectOp := plan.NewElementaryOperator(collectID, "collect", 1, 0)
	b.Register(collectOp)

	_ = source.Outputs()[0].Connect(mapOp.Inputs()[0])
	_ = mapOp.Outputs()[0].Connect(collectOp.Inputs()[0])
	b.MarkSink(collectOp)

	return b.Build(), behaviors
}

func sinkID(p *plan.Plan) plan.OperatorID {
	if len(p.Sinks) == 0 {
		return 0
	}
	return p.Sinks[0].ID()
}
