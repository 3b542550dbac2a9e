// ABOUTME: Tests for the repair-filings command runner
// ABOUTME: Runs against a temporary badger store and checks the backup file
package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, opts kv.Options, profiles map[string]string) {
	t.Helper()
	store, err := db.OpenStore(opts)
	require.NoError(t, err)
	repos := db.New(store)
	for id, doc := range profiles {
		require.NoError(t, repos.Profiles.Put(context.Background(), id, []byte(doc)))
	}
	require.NoError(t, store.Close())
}

func readProfile(t *testing.T, opts kv.Options, id string) map[string]any {
	t.Helper()
	store, err := db.OpenStore(opts)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	raw, err := db.New(store).Profiles.Get(context.Background(), id)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestRunRepairAllWithBackup(t *testing.T) {
	dir := t.TempDir()
	opts := kv.Options{Backend: kv.BackendSQLite, Path: filepath.Join(dir, "store.db")}
	seed(t, opts, map[string]string{
		"u1": `{"name":"Ann","taxFilings":[{"year":{"year":2023,"pricingPresetId":"basic"}}]}`,
		"u2": `{"taxFilings":[{"year":2024}]}`,
	})

	backup := filepath.Join(dir, "backup.json")
	err := runRepair(context.Background(), runConfig{store: opts, backupPath: backup, backup: true}, zerolog.Nop())
	require.NoError(t, err)

	doc := readProfile(t, opts, "u1")
	assert.Equal(t, "Ann", doc["name"])
	filing := doc["taxFilings"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(2023), filing["year"])

	raw, err := os.ReadFile(backup)
	require.NoError(t, err)
	var saved map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Contains(t, saved, "u1")
	assert.NotContains(t, saved, "u2")
}

func TestRunRepairDryRunLeavesStore(t *testing.T) {
	dir := t.TempDir()
	opts := kv.Options{Backend: kv.BackendSQLite, Path: filepath.Join(dir, "store.db")}
	seed(t, opts, map[string]string{
		"u1": `{"taxFilings":[{"year":{"year":2023}}]}`,
	})

	backup := filepath.Join(dir, "backup.json")
	err := runRepair(context.Background(), runConfig{store: opts, userID: "u1", dryRun: true, backupPath: backup, backup: true}, zerolog.Nop())
	require.NoError(t, err)

	filing := readProfile(t, opts, "u1")["taxFilings"].([]any)[0].(map[string]any)
	assert.IsType(t, map[string]any{}, filing["year"])
	_, err = os.Stat(backup)
	assert.True(t, os.IsNotExist(err))
}

func TestRunRepairMissingUser(t *testing.T) {
	opts := kv.Options{Backend: kv.BackendSQLite, Path: filepath.Join(t.TempDir(), "store.db")}
	err := runRepair(context.Background(), runConfig{store: opts, userID: "ghost"}, zerolog.Nop())
	assert.Error(t, err)
}
