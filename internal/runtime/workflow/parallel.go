package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/eventfactory"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/step"
)

// ParallelWorkflow runs every Branch concurrently with pre-allocated
// sequence numbers (spec §4.J.3), so Step ordering per branch is
// deterministic regardless of branch duration (P6), and merges the
// branch outputs either via MergeTemplate or default concatenation.
type ParallelWorkflow struct {
	id            string
	branches      []Branch
	mergeTemplate *Template
	seq           *sequence.Manager
	executor      *runnable.Executor
}

// NewParallelWorkflow constructs a ParallelWorkflow. mergeTemplate may be
// nil to use the default `[branch_id]:\n<output>` concatenation.
func NewParallelWorkflow(id string, branches []Branch, mergeTemplate *Template, seq *sequence.Manager, executor *runnable.Executor) *ParallelWorkflow {
	return &ParallelWorkflow{id: id, branches: branches, mergeTemplate: mergeTemplate, seq: seq, executor: executor}
}

func (w *ParallelWorkflow) ID() string                      { return w.id }
func (w *ParallelWorkflow) RunnableType() step.RunnableType { return step.RunnableTypeWorkflow }

type branchOutcome struct {
	id       string
	response string
	err      error
}

func (w *ParallelWorkflow) Run(ctx context.Context, input string, ec *execctx.Context) (runnable.RunOutput, error) {
	f := eventfactory.New(ec)

	// Pre-allocate each branch's seq_start before launching any goroutine
	// (spec §4.J.3): this is what makes branch Step ranges contiguous and
	// ordered by declaration regardless of which branch finishes first.
	seqStarts := make([]int, len(w.branches))
	for i := range w.branches {
		s, err := w.seq.Allocate(ctx, ec.SessionID, ec)
		if err != nil {
			return runnable.RunOutput{}, err
		}
		seqStarts[i] = s
	}

	outcomes := make([]branchOutcome, len(w.branches))
	var wg sync.WaitGroup
	wg.Add(len(w.branches))
	for i, branch := range w.branches {
		i, branch := i, branch
		go func() {
			defer wg.Done()
			outcomes[i] = w.runBranch(ctx, input, ec, f, branch, seqStarts[i])
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			return runnable.RunOutput{}, o.err
		}
	}

	merged, err := w.merge(outcomes)
	if err != nil {
		return runnable.RunOutput{}, err
	}
	return runnable.RunOutput{Response: merged, TerminationReason: "normal", WorkflowID: ec.WorkflowID}, nil
}

func (w *ParallelWorkflow) runBranch(ctx context.Context, input string, ec *execctx.Context, f *eventfactory.Factory, branch Branch, seqStart int) branchOutcome {
	ec.Wire.Write(f.BranchStarted(branch.ID))
	defer ec.Wire.Write(f.BranchCompleted(branch.ID))

	rendered, err := branch.InputTemplate.Render(map[string]any{"input": input})
	if err != nil {
		return branchOutcome{id: branch.ID, err: err}
	}

	metadata := map[string]any{}
	sequence.StampSeqStart(metadata, seqStart)
	childCtx := ec.Child(uuid.NewString(), execctx.ChildParams{
		RunnableType: branch.Runnable.RunnableType(),
		RunnableID:   branch.Runnable.ID(),
		NestingType:  execctx.NestingWorkflowNode,
		NodeID:       branch.ID,
		Metadata:     metadata,
	})

	out, err := w.executor.Execute(ctx, branch.Runnable, rendered, childCtx)
	if err != nil {
		return branchOutcome{id: branch.ID, err: err}
	}
	return branchOutcome{id: branch.ID, response: out.Response}
}

func (w *ParallelWorkflow) merge(outcomes []branchOutcome) (string, error) {
	if w.mergeTemplate != nil {
		vars := make(map[string]any, len(outcomes))
		for _, o := range outcomes {
			vars[o.id] = o.response
		}
		return w.mergeTemplate.Render(vars)
	}
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s]:\n%s", o.id, o.response)
	}
	return b.String(), nil
}
