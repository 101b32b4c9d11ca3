package commands

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/propertyhub/internal/remote"
	"github.com/beesaferoot/propertyhub/internal/remote/remotetest"
)

func TestUpCmd(t *testing.T) {
	cmd := UpCmd()
	assert.Equal(t, "up", cmd.Use)
	assert.Equal(t, "Apply all pending migrations", cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
}

func TestDownCmd(t *testing.T) {
	cmd := DownCmd()
	assert.Equal(t, "down", cmd.Use)
	assert.Equal(t, "Revert the last migration", cmd.Short)
}

func TestStatusCmd(t *testing.T) {
	cmd := StatusCmd()
	assert.Equal(t, "status", cmd.Use)
	assert.Equal(t, "Show status of all migrations", cmd.Short)
}

func TestHistoryCmd(t *testing.T) {
	cmd := HistoryCmd()
	assert.Equal(t, "history", cmd.Use)
	assert.Equal(t, "Show migration history", cmd.Short)
}

func TestMigrateCmd(t *testing.T) {
	cmd := MigrateCmd()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("local"))
	assert.Len(t, cmd.Commands(), 4)
}

func TestOfflineCmd(t *testing.T) {
	cmd := OfflineCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"enable", "disable", "sync", "status", "pay", "queue", "show", "retry"}, names)

	assert.NotNil(t, DisableCmd().Flags().Lookup("keep-on-failure"))
	pay := PayCmd()
	for _, flag := range []string{"tenant", "booking", "amount", "method"} {
		assert.NotNil(t, pay.Flags().Lookup(flag), flag)
	}
}

func TestServeCmd(t *testing.T) {
	cmd := ServeCmd()
	assert.Equal(t, "serve", cmd.Use)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	remotePath := filepath.Join(dir, "remote.db")
	t.Setenv("DATABASE_URL", "sqlite:"+remotePath)
	t.Setenv("LOCAL_DB_PATH", filepath.Join(dir, "offline.db"))
	t.Setenv("PREFS_PATH", filepath.Join(dir, "prefs.yaml"))
	t.Setenv("PROPERTYHUB_IDENTITY", "user_2tenant")
	t.Setenv("CONNECTIVITY_PROBE_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "migrate", "up", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "create_property_schema")

	out, err = run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully applied migration: create_property_schema")

	out, err = run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending migrations.")

	rs, err := remote.Open("sqlite:"+remotePath, nil)
	require.NoError(t, err)
	fixture := remotetest.Seed(t, rs, "user_2tenant", 2)
	require.NoError(t, rs.Close())
	tenant := fmt.Sprint(fixture.Tenant.ID)

	out, err = run(t, "offline", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "Offline mode enabled.")

	out, err = run(t, "offline", "pay", "--tenant", tenant, "--amount", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "1 changes pending")

	out, err = run(t, "offline", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"offline_mode": true`)
	assert.Contains(t, out, `"pending_sync_count": 1`)

	out, err = run(t, "offline", "show", "payments", "--tenant", tenant)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, `"reference_number"`))

	out, err = run(t, "offline", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Payments uploaded: 1, failed: 0")

	_, err = run(t, "offline", "queue", "tenants", tenant, "archive")
	assert.Error(t, err)

	out, err = run(t, "migrate", "status", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "create_offline_cache")
	assert.Contains(t, out, "Applied")

	out, err = run(t, "migrate", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "create_property_schema")

	out, err = run(t, "offline", "disable")
	require.NoError(t, err)
	assert.Contains(t, out, "Offline mode disabled.")
}
