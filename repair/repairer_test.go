// ABOUTME: Tests for running the repair over stored profiles
// ABOUTME: Covers dry runs, backups, and all-user sweeps
package repair

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corrupted = `{"taxFilings":[{"year":{"year":2024,"pricingPresetId":"p1"}},{"year":"bad"}]}`

func seed(t *testing.T) *db.Repositories {
	t.Helper()
	repos := db.New(kv.NewTestStore(t))
	ctx := context.Background()
	require.NoError(t, repos.Profiles.Put(ctx, "u1", []byte(corrupted)))
	require.NoError(t, repos.Profiles.Put(ctx, "u2", []byte(`{"taxFilings":[{"year":2023}]}`)))
	return repos
}

func TestFixUserWritesRepairedProfile(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()
	backup := NewBackup()
	r := New(repos.Profiles, Options{Backup: backup}, zerolog.Nop(), nil)

	res, err := r.FixUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Fixed)
	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, res.Errors, 1)

	stored, err := repos.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, corrupted, string(stored))

	assert.Equal(t, 1, backup.Len())
	var buf bytes.Buffer
	_, err = backup.WriteTo(&buf)
	require.NoError(t, err)
	var docs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	assert.JSONEq(t, corrupted, string(docs["u1"]))

	// Second run finds nothing to do
	res, err = r.FixUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestFixUserDryRunWritesNothing(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()
	r := New(repos.Profiles, Options{DryRun: true}, zerolog.Nop(), nil)

	res, err := r.FixUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	stored, err := repos.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, corrupted, string(stored))
}

func TestFixUserMissingProfile(t *testing.T) {
	repos := seed(t)
	r := New(repos.Profiles, Options{}, zerolog.Nop(), nil)

	_, err := r.FixUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFixAll(t *testing.T) {
	repos := seed(t)
	r := New(repos.Profiles, Options{}, zerolog.Nop(), nil)

	sum, err := r.FixAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Users)
	assert.Equal(t, 1, sum.Changed)
	assert.Equal(t, 1, sum.Fixed)
	assert.Equal(t, 1, sum.Dropped)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "user u1")
	assert.Len(t, sum.Results, 2)

	again, err := r.FixAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Changed)
	assert.Empty(t, again.Errors)
}
