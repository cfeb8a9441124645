package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/signature"
	"github.com/shonenark/ark-gateway/internal/testutil"
)

// run executes arkctl with a config path that does not exist, so only the
// environment set by the test applies.
func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	code = Execute("test", args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func setN8N(t *testing.T, stub *testutil.StubN8N, key string) {
	t.Helper()
	t.Setenv("N8N_API_URL", stub.URL())
	t.Setenv("N8N_API_KEY", key)
	t.Setenv("ARK_STORAGE__TYPE", "none")
	t.Setenv("LOG_LEVEL", "error")
}

func workflowDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, name := range names {
		body := fmt.Sprintf(`{"name":%q,"nodes":[{"type":"n8n-nodes-base.webhook"}],"connections":{},"active":true}`, name)
		file := filepath.Join(dir, fmt.Sprintf("%02d-%s.json", i, name))
		require.NoError(t, os.WriteFile(file, []byte(body), 0o644))
	}
	return dir
}

func TestDeploy_Success(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.APIKey = "secret-key"
	setN8N(t, stub, "secret-key")
	dir := workflowDir(t, "signup-flow", "contact-form")

	code, stdout, stderr := run(t, "deploy", "--dir", dir, "--format", "json")
	require.Equal(t, 0, code, stderr)

	var summary domain.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, stub.Count(testutil.CallCreate))
	assert.Equal(t, 2, stub.Count(testutil.CallActivate))
}

func TestDeploy_TableOutput(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	setN8N(t, stub, "k")
	dir := workflowDir(t, "signup-flow")

	code, stdout, _ := run(t, "deploy", "--dir", dir)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "signup-flow")
	assert.Contains(t, stdout, "Deployed 1/1 workflows")
}

func TestDeploy_PartialFailureExitsNonZero(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.FailWrite["contact-form"] = http.StatusBadRequest
	setN8N(t, stub, "k")
	dir := workflowDir(t, "signup-flow", "contact-form")

	code, stdout, stderr := run(t, "deploy", "--dir", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Deployed 1/2 workflows")
	assert.Contains(t, stderr, "1 of 2 workflows failed to deploy")
	assert.Len(t, stub.ByName("signup-flow"), 1)
}

func TestDeploy_MissingCredentials(t *testing.T) {
	t.Setenv("N8N_API_URL", "")
	t.Setenv("N8N_API_KEY", "")

	code, stdout, stderr := run(t, "deploy", "--dir", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "missing N8N_API_URL, N8N_API_KEY")
	assert.Contains(t, stderr, "Hint:")
}

func TestDeploy_ConnectionFailureChangesNothing(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	stub.APIKey = "right"
	setN8N(t, stub, "wrong")
	dir := workflowDir(t, "signup-flow")

	code, _, stderr := run(t, "deploy", "--dir", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "arkctl test")
	assert.Zero(t, stub.Writes())
}

func TestDeploy_InvalidFormat(t *testing.T) {
	code, _, stderr := run(t, "deploy", "--format", "yaml")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid format")
}

func TestHistory_RecordsDeployments(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	setN8N(t, stub, "k")
	t.Setenv("ARK_STORAGE__TYPE", "sqlite")
	t.Setenv("ARK_STORAGE__SQLITE__PATH", filepath.Join(t.TempDir(), "ark.db"))
	dir := workflowDir(t, "signup-flow")

	code, _, stderr := run(t, "deploy", "--dir", dir)
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := run(t, "history", "--format", "json")
	require.Equal(t, 0, code, stderr)

	var runs []domain.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Succeeded)

	code, stdout, stderr = run(t, "history", runs[0].RunID, "--format", "json")
	require.Equal(t, 0, code, stderr)

	var one domain.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &one))
	require.Len(t, one.Results, 1)
	assert.Equal(t, "signup-flow", one.Results[0].WorkflowName)
}

func TestHistory_Disabled(t *testing.T) {
	t.Setenv("ARK_STORAGE__TYPE", "none")

	code, _, stderr := run(t, "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "deployment history is disabled")
}

func TestTest_Connected(t *testing.T) {
	stub := testutil.NewStubN8N(t)
	setN8N(t, stub, "k")

	code, stdout, _ := run(t, "test")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "connected to "+stub.URL())
}

func TestSign(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "shh")
	body := []byte(`{"event":"signup"}`)
	file := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(file, body, 0o644))

	code, stdout, stderr := run(t, "sign", file)
	require.Equal(t, 0, code, stderr)

	want := signature.NewValidator("shh").Sign(body)
	assert.Equal(t, "X-Webhook-Signature: "+want, strings.TrimSpace(stdout))

	res := signature.NewValidator("shh").Validate(string(body), http.Header{"X-Webhook-Signature": {want}})
	assert.True(t, res.Valid)
}

func TestSign_RequiresSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")

	code, _, stderr := run(t, "sign", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "WEBHOOK_SECRET")
}

func TestParseFormat(t *testing.T) {
	f, err := parseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = parseFormat("table")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	_, err = parseFormat("xml")
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "****6789", mask("n8n_api_123456789"))
	assert.Contains(t, mask(""), "not set")
}
