package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runtimetest"
	"github.com/runloom/orchestra/internal/runtime/sequence"
)

// TestParallel_MergeTemplate covers S3: two branches transforming the
// input, merged via a Handlebars template referencing branch ids.
func TestParallel_MergeTemplate(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := runnable.New(mem, nil)
	seq := sequence.New(mem)

	en := &echoRunnable{id: "en", transform: func(in string) string { return strings.ToUpper(in) }}
	de := &echoRunnable{id: "de", transform: func(in string) string { return "HALLO" }}

	branches := []Branch{
		{ID: "en", Runnable: en, InputTemplate: mustTemplate(t, "{{input}}")},
		{ID: "de", Runnable: de, InputTemplate: mustTemplate(t, "{{input}}")},
	}
	merge := mustTemplate(t, "EN:{{en}}\nDE:{{de}}")
	wf := NewParallelWorkflow("wf-parallel", branches, merge, seq, exec)

	ec, w := newTestExecCtx("sess-1", "wf-parallel")
	var out runnable.RunOutput
	var runErr error
	go func() {
		out, runErr = wf.Run(context.Background(), "hello", ec)
		w.Close()
	}()
	for range w.Read() {
	}
	require.NoError(t, runErr)
	assert.True(t, strings.HasPrefix(out.Response, "EN:"))
	assert.Contains(t, out.Response, "DE:")
}

// TestParallel_DefaultMergeConcatenates covers the no-merge-template path.
func TestParallel_DefaultMergeConcatenates(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := runnable.New(mem, nil)
	seq := sequence.New(mem)

	a := &echoRunnable{id: "a"}
	b := &echoRunnable{id: "b"}
	branches := []Branch{
		{ID: "a", Runnable: a, InputTemplate: mustTemplate(t, "{{input}}")},
		{ID: "b", Runnable: b, InputTemplate: mustTemplate(t, "{{input}}")},
	}
	wf := NewParallelWorkflow("wf-parallel", branches, nil, seq, exec)

	ec, w := newTestExecCtx("sess-1", "wf-parallel")
	var out runnable.RunOutput
	go func() { out, _ = wf.Run(context.Background(), "x", ec); w.Close() }()
	for range w.Read() {
	}
	assert.Contains(t, out.Response, "[a]:\nx")
	assert.Contains(t, out.Response, "[b]:\nx")
}
