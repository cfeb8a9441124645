package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/n8n"
	"github.com/shonenark/ark-gateway/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeWorkflows(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func workflow(name string, active bool) string {
	return fmt.Sprintf(`{"name":%q,"nodes":[{"type":"n8n-nodes-base.webhook"}],"connections":{},"active":%t}`, name, active)
}

type recorder struct {
	runs []*domain.Summary
	err  error
}

func (r *recorder) RecordRun(_ context.Context, s *domain.Summary) error {
	r.runs = append(r.runs, s)
	return r.err
}

func TestDeployAll_FailureIsolation(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.FailWrite["beta"] = http.StatusBadRequest

	dir := writeWorkflows(t, map[string]string{
		"01-alpha.json": workflow("alpha", false),
		"02-beta.json":  workflow("beta", true),
		"03-gamma.json": workflow("gamma", true),
		"04-delta.json": workflow("delta", false),
		"notes.txt":     "not a workflow",
	})

	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet))
	summary, err := o.DeployAll(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.OK())

	failures := summary.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "beta", failures[0].WorkflowName)
	assert.Equal(t, "02-beta.json", failures[0].File)

	names := make([]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		names = append(names, r.WorkflowName)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, names)

	assert.Len(t, stub.ByName("gamma"), 1)
	assert.Len(t, stub.ByName("delta"), 1)
	assert.Equal(t, 1, stub.Count(testutil.CallActivate), "only gamma is activated")
	assert.Equal(t, PhaseDone, o.Phase())
	assert.NotEmpty(t, summary.RunID)
}

func TestDeployAll_ConnectionFailureAbortsBeforeWrites(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.APIKey = "correct"

	dir := writeWorkflows(t, map[string]string{
		"a.json": workflow("a", true),
		"b.json": workflow("b", true),
	})

	var phases []Phase
	rec := &recorder{}
	o := New(n8n.NewClient(stub.URL(), "wrong"),
		WithLogger(quiet),
		WithRecorder(rec),
		OnPhase(func(p Phase) { phases = append(phases, p) }),
	)

	summary, err := o.DeployAll(context.Background(), dir)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, domain.IsConnectivity(err))

	remote, ok := domain.AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)

	assert.Zero(t, stub.Writes())
	assert.Equal(t, 1, stub.Requests(), "only the pre-flight reaches the remote")
	assert.Zero(t, stub.Count(testutil.CallList), "the pre-flight is rejected before listing")
	assert.Empty(t, rec.runs)
	assert.Equal(t, []Phase{PhaseIdle, PhaseTestingConnection, PhaseConnectionFailed}, phases)
}

func TestDeployAll_Unreachable(t *testing.T) {
	dir := writeWorkflows(t, map[string]string{"a.json": workflow("a", true)})

	o := New(n8n.NewClient("http://127.0.0.1:1/api/v1", "k"), WithLogger(quiet))
	_, err := o.DeployAll(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, domain.IsConnectivity(err))
}

func TestDeployAll_Phases(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	dir := writeWorkflows(t, map[string]string{"a.json": workflow("a", true)})

	var phases []Phase
	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet), OnPhase(func(p Phase) { phases = append(phases, p) }))
	_, err := o.DeployAll(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []Phase{
		PhaseIdle, PhaseTestingConnection, PhaseConnected, PhaseReconciling, PhaseSummarizing, PhaseDone,
	}, phases)
	assert.Equal(t, "testing-connection", PhaseTestingConnection.String())
}

func TestDeployAll_MalformedFile(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	dir := writeWorkflows(t, map[string]string{
		"broken.json": `{"name": "broken", "nodes": [`,
		"ok.json":     workflow("ok", false),
	})

	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet))
	summary, err := o.DeployAll(context.Background(), dir)
	require.NoError(t, err)

	require.Equal(t, 2, summary.Total)
	broken := summary.Results[0]
	assert.False(t, broken.Success)
	assert.Equal(t, "broken", broken.WorkflowName)
	assert.Contains(t, broken.Error, "malformed JSON")
	assert.True(t, summary.Results[1].Success)
}

func TestDeployAll_MissingDirectory(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet))

	_, err := o.DeployAll(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Empty(t, stub.Calls())
}

func TestDeployAll_EmptyDirectory(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet))

	summary, err := o.DeployAll(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.True(t, summary.OK())
}

func TestDeployAll_RecordsRun(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	dir := writeWorkflows(t, map[string]string{"a.json": workflow("a", true)})

	rec := &recorder{err: errors.New("disk full")}
	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet), WithRecorder(rec))

	summary, err := o.DeployAll(context.Background(), dir)
	require.NoError(t, err, "recording failures are not deployment failures")
	require.Len(t, rec.runs, 1)
	assert.Same(t, summary, rec.runs[0])
}

func TestDeployAll_DryRun(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.Seed("existing", true)
	dir := writeWorkflows(t, map[string]string{
		"existing.json": workflow("existing", true),
		"new.json":      workflow("new", true),
	})

	rec := &recorder{}
	o := New(n8n.NewClient(stub.URL(), "k"), WithLogger(quiet), WithDryRun(true), WithRecorder(rec))
	summary, err := o.DeployAll(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, domain.ActionUpdate, summary.Results[0].Action)
	assert.Equal(t, domain.ActionCreate, summary.Results[1].Action)
	assert.Zero(t, stub.Writes())
	assert.Empty(t, rec.runs)
}

func TestWorkflowFiles_Sorted(t *testing.T) {
	dir := writeWorkflows(t, map[string]string{
		"b.json": "{}",
		"a.JSON": "{}",
		"c.yaml": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	files, err := WorkflowFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.JSON", filepath.Base(files[0]))
	assert.Equal(t, "b.json", filepath.Base(files[1]))
}
