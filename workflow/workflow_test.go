package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Workflow{}, &NodeExecution{}))
	return db
}

func TestGormProvider_GetDraft(t *testing.T) {
	db := setupDB(t)
	provider := NewGormProvider(db)
	ctx := context.Background()

	_, err := provider.GetDraft(ctx, "app-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Create(&Workflow{
		ID:      "wf-draft",
		AppID:   "app-1",
		Version: DraftVersion,
		Graph:   `{"nodes":[]}`,
	}).Error)

	wf, err := provider.GetDraft(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-draft", wf.ID)
	assert.True(t, wf.IsDraft())
}

func TestGormProvider_GetPublished_LatestVersionWins(t *testing.T) {
	db := setupDB(t)
	provider := NewGormProvider(db)
	ctx := context.Background()

	// a draft alone does not count as published
	require.NoError(t, db.Create(&Workflow{
		ID: "wf-draft", AppID: "app-1", Version: DraftVersion,
	}).Error)
	_, err := provider.GetPublished(ctx, "app-1")
	assert.ErrorIs(t, err, ErrNotFound)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&Workflow{
		ID: "wf-v1", AppID: "app-1", Version: "v1", CreatedAt: old,
	}).Error)
	require.NoError(t, db.Create(&Workflow{
		ID: "wf-v2", AppID: "app-1", Version: "v2", CreatedAt: time.Now(),
	}).Error)

	wf, err := provider.GetPublished(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-v2", wf.ID)
	assert.False(t, wf.IsDraft())
}

func TestNodeExecutionRepository_SaveAndOrdering(t *testing.T) {
	db := setupDB(t)
	repo := NewGormNodeExecutionRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, node := range []string{"start", "llm", "end"} {
		require.NoError(t, repo.Save(ctx, &NodeExecution{
			ID:            "exec-" + node,
			WorkflowRunID: "run-1",
			NodeID:        node,
			Index:         i,
			Status:        "succeeded",
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}))
	}
	// another run's records never leak into the listing
	require.NoError(t, repo.Save(ctx, &NodeExecution{
		ID: "exec-other", WorkflowRunID: "run-2", NodeID: "start", Index: 0,
	}))

	asc, err := repo.GetByWorkflowRun(ctx, "run-1", &OrderConfig{
		OrderBy: []string{"index", "created_at"}, Direction: OrderAsc,
	})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, []string{"start", "llm", "end"}, nodeIDs(asc))

	desc, err := repo.GetByWorkflowRun(ctx, "run-1", &OrderConfig{
		OrderBy: []string{"index"}, Direction: OrderDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"end", "llm", "start"}, nodeIDs(desc))
}

func TestNodeExecutionRepository_SaveUpdatesExisting(t *testing.T) {
	db := setupDB(t)
	repo := NewGormNodeExecutionRepository(db)
	ctx := context.Background()

	exec := &NodeExecution{ID: "exec-1", WorkflowRunID: "run-1", NodeID: "llm", Status: "running"}
	require.NoError(t, repo.Save(ctx, exec))

	exec.Status = "succeeded"
	exec.Outputs = `{"text":"done"}`
	require.NoError(t, repo.Save(ctx, exec))

	got, err := repo.GetByWorkflowRun(ctx, "run-1", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "succeeded", got[0].Status)
	assert.Equal(t, `{"text":"done"}`, got[0].Outputs)
}

func TestNodeExecutionRepository_RejectsUnknownOrderField(t *testing.T) {
	db := setupDB(t)
	repo := NewGormNodeExecutionRepository(db)

	_, err := repo.GetByWorkflowRun(context.Background(), "run-1", &OrderConfig{
		OrderBy: []string{"; DROP TABLE workflows"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported order field")
}

func nodeIDs(executions []NodeExecution) []string {
	ids := make([]string, len(executions))
	for i, e := range executions {
		ids[i] = e.NodeID
	}
	return ids
}
