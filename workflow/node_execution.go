package workflow

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NodeExecution is one node's execution record within a workflow run.
type NodeExecution struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	WorkflowRunID string    `gorm:"index;size:36" json:"workflow_run_id"`
	NodeID        string    `gorm:"size:255" json:"node_id"`
	Index         int       `gorm:"column:idx" json:"index"`
	Status        string    `gorm:"size:64" json:"status"`
	Inputs        string    `gorm:"type:text" json:"inputs"`
	Outputs       string    `gorm:"type:text" json:"outputs"`
	Error         string    `gorm:"type:text" json:"error,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName maps the model to its table.
func (NodeExecution) TableName() string {
	return "workflow_node_executions"
}

// OrderDirection orders query results ascending or descending.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// OrderConfig configures the ordering of node execution listings.
// OrderBy names model fields; all listed fields share one direction.
type OrderConfig struct {
	OrderBy   []string
	Direction OrderDirection
}

// NodeExecutionRepository persists and retrieves node execution records.
// It plays no part in admission control; consumers only use it to read
// back the ordered execution trace of a run.
type NodeExecutionRepository interface {
	// Save creates or updates an execution record, keyed by its ID.
	Save(ctx context.Context, execution *NodeExecution) error

	// GetByWorkflowRun returns all executions of a run, ordered per
	// the optional OrderConfig.
	GetByWorkflowRun(ctx context.Context, runID string, order *OrderConfig) ([]NodeExecution, error)
}

// orderColumns maps the orderable field names to their columns.
// Restricting to a fixed set keeps caller-supplied field names out of
// the generated SQL.
var orderColumns = map[string]string{
	"index":      "idx",
	"created_at": "created_at",
	"node_id":    "node_id",
	"status":     "status",
	"elapsed_ms": "elapsed_ms",
}

// GormNodeExecutionRepository is the database-backed repository.
type GormNodeExecutionRepository struct {
	db *gorm.DB
}

// NewGormNodeExecutionRepository creates a repository over the given
// database.
func NewGormNodeExecutionRepository(db *gorm.DB) *GormNodeExecutionRepository {
	return &GormNodeExecutionRepository{db: db}
}

// Save creates or updates the record.
func (r *GormNodeExecutionRepository) Save(ctx context.Context, execution *NodeExecution) error {
	if err := r.db.WithContext(ctx).Save(execution).Error; err != nil {
		return fmt.Errorf("save node execution failed (id=%s): %w", execution.ID, err)
	}
	return nil
}

// GetByWorkflowRun returns the run's executions, ordered per order.
func (r *GormNodeExecutionRepository) GetByWorkflowRun(ctx context.Context, runID string, order *OrderConfig) ([]NodeExecution, error) {
	query := r.db.WithContext(ctx).Where("workflow_run_id = ?", runID)

	if order != nil {
		desc := order.Direction == OrderDesc
		for _, field := range order.OrderBy {
			column, ok := orderColumns[field]
			if !ok {
				return nil, fmt.Errorf("unsupported order field %q", field)
			}
			query = query.Order(clause.OrderByColumn{
				Column: clause.Column{Name: column},
				Desc:   desc,
			})
		}
	}

	var executions []NodeExecution
	if err := query.Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("query node executions failed (run_id=%s): %w", runID, err)
	}
	return executions, nil
}
