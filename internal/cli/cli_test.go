package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tourdesk/internal/adapter"
	"github.com/roach88/tourdesk/internal/ids"
)

type cliResult struct {
	stdout string
	stderr string
	code   int
}

// setupEnv points the CLI at a fresh data directory and the mock adapter.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TOURDESK_DATA_DIR", dir)
	t.Setenv("TOURDESK_DATA_ADAPTER", "mock")
	t.Setenv("TOURDESK_SESSION_STORE", "file")
	t.Setenv("TOURDESK_MOCK_LATENCY", "0s")
	t.Setenv("TOURDESK_POLL_INTERVAL", "30s")
	t.Setenv("TOURDESK_JWT_SECRET", "cli-test-secret")
	t.Setenv("TOURDESK_SEED_FILE", "")
	t.Setenv("TOURDESK_SCHEMA_FILE", "")
	t.Setenv("TOURDESK_DATABASE_URL", "")
	return dir
}

func testRoot() *RootOptions {
	return &RootOptions{extra: []adapter.Option{
		adapter.WithIDGenerator(ids.NewSequence("new")),
		adapter.WithBcryptCost(bcrypt.MinCost),
	}}
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), newRootCommand(testRoot()), args, &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func assertGolden(t *testing.T, name string, got string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(got))
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestGoldenOutput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"select_fleet_available", []string{"select", "fleet", "--where", `{"status": "available"}`}},
		{"select_tour_json", []string{"--format", "json", "select", "tours", "--where", `{"id": "t-2"}`}},
		{"insert_client", []string{"insert", "clients", `{"name": "Elena Rocha", "tier": "gold"}`}},
		{"update_vehicle", []string{"update", "fleet", "v-3", `{"status": "available"}`}},
		{"stats_fleet", []string{"stats", "fleet"}},
		{"tables", []string{"tables"}},
		{"watch_vans", []string{"watch", "fleet", "--where", `{"kind": "van"}`, "--count", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)

			res := runCLI(t, tt.args...)

			require.Equal(t, ExitSuccess, res.code, "stderr: %s", res.stderr)
			assertGolden(t, tt.name, res.stdout)
		})
	}
}

func TestWatchLogsFailedInitialLoad(t *testing.T) {
	setupEnv(t)
	t.Setenv("TOURDESK_MOCK_LATENCY", "1h")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := execute(ctx, newRootCommand(testRoot()), []string{"--verbose", "watch", "fleet"}, &stdout, &stderr)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr.String(), "initial load failed")
	assert.Contains(t, stderr.String(), "context deadline exceeded")
}

func TestSelectWarnsAboutClausesThatMatchNothing(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "select", "bookings", "--where", `{"status": {"in": []}}`)

	require.Equal(t, ExitSuccess, res.code)
	assert.Equal(t, "(no records)\n", res.stdout)
	assert.Contains(t, res.stderr, `warning: field "status": empty in-set matches nothing`)
}

func TestSelectJSONCarriesWarnings(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "--format", "json", "select", "bookings", "--where", `{"status": {"like": "a%"}}`)

	require.Equal(t, ExitSuccess, res.code)
	resp := decodeResponse(t, res.stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []any{}, resp.Data)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], `field "status"`)
}

func TestSelectRejectsMalformedWhere(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "select", "bookings", "--where", `{"status": `)

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "Error [USAGE]: invalid --where")
	assert.Empty(t, res.stdout)
}

func TestUnknownAdapterExitsWithCommandError(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "--adapter", "firebase", "tables")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Equal(t,
		"Error [CONFIG]: cannot start data adapter: unknown data adapter \"firebase\" (want one of mock, sqlite, supabase)\n",
		res.stderr)
}

func TestUnknownAdapterFromEnvironment(t *testing.T) {
	setupEnv(t)
	t.Setenv("TOURDESK_DATA_ADAPTER", "firebase")

	res := runCLI(t, "--format", "json", "select", "clients")

	assert.Equal(t, ExitCommandError, res.code)
	resp := decodeResponse(t, res.stdout)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "CONFIG", resp.Error.Code)
}

func TestInvalidConfigurationExitsWithCommandError(t *testing.T) {
	setupEnv(t)
	t.Setenv("TOURDESK_MOCK_LATENCY", "-1s")

	res := runCLI(t, "tables")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "Error [CONFIG]")
}

func TestRecordErrorsExitWithFailure(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"delete missing", []string{"delete", "bookings", "b-99"}, "NOT_FOUND"},
		{"update missing", []string{"update", "bookings", "b-99", `{"seats": 1}`}, "NOT_FOUND"},
		{"duplicate id", []string{"insert", "clients", `{"id": "c-1", "name": "Twin"}`}, "CONFLICT"},
		{"schema violation", []string{"insert", "fleet", `{"plate": "TD-9", "kind": "rocket", "capacity": 1, "status": "available"}`}, "INVALID_RECORD"},
		{"id change", []string{"update", "clients", "c-1", `{"id": "c-9"}`}, "INVALID_RECORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)

			res := runCLI(t, append([]string{"--format", "json"}, tt.args...)...)

			assert.Equal(t, ExitFailure, res.code)
			resp := decodeResponse(t, res.stdout)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "delete", "bookings", "b-4")

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "deleted bookings/b-4\n", res.stdout)
}

func TestInsertRejectsNonObject(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "insert", "clients", `["not", "a", "record"]`)

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "record must be a JSON object")
}

func TestStatsUnknownDashboard(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "stats", "payroll")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `unknown dashboard "payroll" (want one of club, crm, fleet, partners)`)
}

func TestStatsFormatsNumbersForLocale(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "stats", "club", "--locale", "de")

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "2.660")
	assert.Contains(t, res.stdout, "1.850")
	assert.Contains(t, res.stdout, "bronze 1, gold 1, silver 1")
}

func TestStatsJSONMarksUndefinedFigures(t *testing.T) {
	setupEnv(t)
	seedFile := writeSeed(t, `
name: bare
tables:
  partners:
    - {id: p-1, name: Solo Guide, type: guide}
`)
	t.Setenv("TOURDESK_SEED_FILE", seedFile)

	res := runCLI(t, "--format", "json", "stats", "partners")

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var resp struct {
		Data []StatResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	byName := make(map[string]StatResult)
	for _, r := range resp.Data {
		byName[r.Name] = r
	}
	require.NotNil(t, byName["partners"].Value)
	assert.Equal(t, 1.0, *byName["partners"].Value)
	assert.Nil(t, byName["average commission"].Value)
	assert.Equal(t, "n/a", byName["average commission"].Display)
}

func TestSessionFlow(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "whoami")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "not signed in\n", res.stdout)

	res = runCLI(t, "login", "--email", "agent@tourdesk.test", "--password", "agent123")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "signed in as Front Desk <agent@tourdesk.test> (agent)\n", res.stdout)

	// A later invocation picks the session up from the data directory.
	res = runCLI(t, "whoami")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "Front Desk <agent@tourdesk.test> (agent)\n", res.stdout)

	res = runCLI(t, "logout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "signed out\n", res.stdout)

	res = runCLI(t, "--format", "json", "whoami")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.JSONEq(t, `{"status":"ok","data":{"signed_in":false}}`, res.stdout)
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "login", "--email", "agent@tourdesk.test", "--password", "wrong-password")

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [AUTH]: login: invalid email or password")

	res = runCLI(t, "whoami")
	assert.Equal(t, "not signed in\n", res.stdout)
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(testRoot())
	cmd.SetIn(strings.NewReader("admin123\n"))

	code := execute(context.Background(), cmd, []string{"login", "--email", "admin@tourdesk.test"}, &stdout, &stderr)

	require.Equal(t, ExitSuccess, code, stderr.String())
	assert.Equal(t, "signed in as Office Admin <admin@tourdesk.test> (admin)\n", stdout.String())
}

func TestLoginWithoutPassword(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(testRoot())
	cmd.SetIn(strings.NewReader(""))

	code := execute(context.Background(), cmd, []string{"login", "--email", "admin@tourdesk.test"}, &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "a password is required")
}

func TestSignupThenWhoami(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "--format", "json", "signup", "--email", "New@Tourdesk.test", "--password", "s3cret!")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var signup struct {
		Data SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &signup))
	assert.True(t, signup.Data.SignedIn)
	require.NotNil(t, signup.Data.User)
	assert.Equal(t, "new@tourdesk.test", signup.Data.User.Email)
	assert.Equal(t, adapter.DefaultRole, signup.Data.User.Role)
	assert.NotZero(t, signup.Data.ExpiresAt)

	res = runCLI(t, "whoami")
	assert.Equal(t, "new@tourdesk.test (client)\n", res.stdout)
}

func TestSignupRejectsShortPassword(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "signup", "--email", "short@tourdesk.test", "--password", "abc")

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [AUTH]")
}

func TestSQLiteAdapterPersistsBetweenRuns(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "--adapter", "sqlite", "insert", "tours", `{"id": "t-9", "name": "Night Kayak", "price": 80}`)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = runCLI(t, "--adapter", "sqlite", "--format", "json", "select", "tours")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.JSONEq(t, `{"status":"ok","data":[{"id":"t-9","name":"Night Kayak","price":80}]}`, res.stdout)

	res = runCLI(t, "--adapter", "sqlite", "tables")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "tours (1)\n", res.stdout)
}

func TestSQLiteAdapterStartsEmpty(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "--adapter", "sqlite", "tables")

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "(no tables)\n", res.stdout)
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "export")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `unknown command "export"`)
}

func TestWrongArgumentCount(t *testing.T) {
	setupEnv(t)

	res := runCLI(t, "update", "clients", "c-1")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "accepts 3 arg(s), received 2")
}
