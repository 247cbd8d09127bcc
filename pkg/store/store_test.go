package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalyshev/TabulistBot/pkg/db"
	"github.com/smalyshev/TabulistBot/pkg/model"
)

const wiki = "commonswiki"

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	s := NewSQLStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *SQLStore, page string, status model.Status, ts time.Time) *model.PageStatus {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertWaiting(ctx, wiki, page, ts))
	p, err := s.GetByPage(ctx, wiki, page)
	require.NoError(t, err)
	require.NotNil(t, p)
	if status != model.StatusWaiting {
		require.NoError(t, s.SetStatus(ctx, p.ID, status, "", ts))
		p.Status = status
	}
	return p
}

func TestGetters(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	ts := time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC)

	p := seed(t, s, "Data_talk:A.tab", model.StatusWaiting, ts)

	byID, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, wiki, byID.Wiki)
	assert.Equal(t, "Data_talk:A.tab", byID.Page)
	assert.Equal(t, model.StatusWaiting, byID.Status)
	assert.Equal(t, "", byID.Message)
	assert.True(t, ts.Equal(byID.Timestamp))

	missing, err := s.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetByPage(ctx, "otherwiki", "Data_talk:A.tab")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Ping(ctx))
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now()

	seed(t, s, "Data_talk:A.tab", model.StatusOK, now)
	seed(t, s, "Data_talk:B.tab", model.StatusFailed, now)
	seed(t, s, "Data_talk:C.tab", model.StatusWaiting, now)
	require.NoError(t, s.UpsertWaiting(ctx, "testwiki", "Data_talk:X.tab", now))

	all, err := s.ListByWiki(ctx, wiki)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[1].ID)
	assert.Less(t, all[1].ID, all[2].ID)

	some, err := s.ListByStatus(ctx, wiki, model.StatusOK, model.StatusWaiting)
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "Data_talk:A.tab", some[0].Page)
	assert.Equal(t, "Data_talk:C.tab", some[1].Page)

	none, err := s.ListByStatus(ctx, wiki)
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := s.CountByStatus(ctx, wiki)
	require.NoError(t, err)
	assert.Equal(t, map[model.Status]int{model.StatusOK: 1, model.StatusFailed: 1, model.StatusWaiting: 1}, counts)
}

func TestUpsertWaiting(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	failed := seed(t, s, "Data_talk:A.tab", model.StatusFailed, old)
	require.NoError(t, s.SetStatus(ctx, failed.ID, model.StatusFailed, "Query failed", old))
	running := seed(t, s, "Data_talk:B.tab", model.StatusRunning, old)

	require.NoError(t, s.UpsertWaiting(ctx, wiki, "Data_talk:A.tab", now))
	require.NoError(t, s.UpsertWaiting(ctx, wiki, "Data_talk:B.tab", now))

	got, err := s.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaiting, got.Status)
	assert.Equal(t, "", got.Message)
	assert.True(t, now.Equal(got.Timestamp))
	assert.Equal(t, failed.ID, got.ID, "upsert keeps the id")

	got, err = s.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status, "running record untouched")
	assert.True(t, old.Equal(got.Timestamp))
}

func TestMarkCheckingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now()

	seed(t, s, "Data_talk:A.tab", model.StatusOK, now)
	seed(t, s, "Data_talk:B.tab", model.StatusRunning, now)
	seed(t, s, "Data_talk:C.tab", model.StatusWaiting, now)
	seed(t, s, "DataXtalk:D.tab", model.StatusWaiting, now)

	n, err := s.MarkChecking(ctx, wiki, "Data_talk:", model.StatusWaiting, model.StatusOK, model.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "underscore in prefix is literal, running excluded")

	n, err = s.DeleteByStatus(ctx, wiki, model.StatusChecking)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := s.ListByWiki(ctx, wiki)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "Data_talk:B.tab", left[0].Page)
	assert.Equal(t, "DataXtalk:D.tab", left[1].Page)
}

func TestAcquireRun(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := time.Hour

	p := seed(t, s, "Data_talk:A.tab", model.StatusOK, now.Add(-2*time.Hour))
	require.NoError(t, s.SetStatus(ctx, p.ID, model.StatusOK, "no change", now.Add(-2*time.Hour)))

	ok, err := s.AcquireRun(ctx, p.ID, now, now.Add(-lease))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, "", got.Message)

	ok, err = s.AcquireRun(ctx, p.ID, now.Add(time.Minute), now.Add(time.Minute-lease))
	require.NoError(t, err)
	assert.False(t, ok, "fresh lease held elsewhere")

	later := now.Add(2 * time.Hour)
	ok, err = s.AcquireRun(ctx, p.ID, later, later.Add(-lease))
	require.NoError(t, err)
	assert.True(t, ok, "stale lease can be taken over")

	ok, err = s.AcquireRun(ctx, 9999, now, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetStatus_Invalid(t *testing.T) {
	s := setupTestStore(t)
	p := seed(t, s, "Data_talk:A.tab", model.StatusWaiting, time.Now())

	require.Error(t, s.SetStatus(context.Background(), p.ID, model.Status("DONE"), "", time.Now()))
}

func TestResetStatus(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now()

	seed(t, s, "Data_talk:A.tab", model.StatusOK, now)
	seed(t, s, "Data_talk:B.tab", model.StatusOK, now)
	_, err := s.MarkChecking(ctx, wiki, "Data_talk:", model.StatusOK)
	require.NoError(t, err)

	n, err := s.ResetStatus(ctx, wiki, model.StatusChecking, model.StatusWaiting, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := s.CountByStatus(ctx, wiki)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StatusWaiting])
}
