// Package workflow provides workflow definition lookup and node
// execution persistence for the generation service.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DraftVersion marks the single editable draft copy of an app's workflow.
const DraftVersion = "draft"

// ErrNotFound is returned when no workflow matches the lookup.
var ErrNotFound = errors.New("workflow not found")

// Workflow is one version of an app's workflow definition.
type Workflow struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AppID     string    `gorm:"index;size:36" json:"app_id"`
	Version   string    `gorm:"size:255" json:"version"`
	Graph     string    `gorm:"type:text" json:"graph"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps the model to its table.
func (Workflow) TableName() string {
	return "workflows"
}

// IsDraft reports whether this is the draft copy.
func (w *Workflow) IsDraft() bool {
	return w.Version == DraftVersion
}

// Provider resolves workflow definitions for an app. Debugger-sourced
// invocations run against the draft; everything else runs against the
// latest published version.
type Provider interface {
	// GetPublished returns the latest published workflow for the app,
	// or ErrNotFound.
	GetPublished(ctx context.Context, appID string) (*Workflow, error)

	// GetDraft returns the draft workflow for the app, or ErrNotFound.
	GetDraft(ctx context.Context, appID string) (*Workflow, error)
}

// GormProvider is the database-backed Provider.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a Provider over the given database.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// GetPublished returns the latest non-draft workflow version.
func (p *GormProvider) GetPublished(ctx context.Context, appID string) (*Workflow, error) {
	var wf Workflow
	result := p.db.WithContext(ctx).
		Where("app_id = ? AND version <> ?", appID, DraftVersion).
		Order("created_at DESC").
		First(&wf)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("query published workflow failed (app_id=%s): %w", appID, result.Error)
	}
	return &wf, nil
}

// GetDraft returns the draft workflow.
func (p *GormProvider) GetDraft(ctx context.Context, appID string) (*Workflow, error) {
	var wf Workflow
	result := p.db.WithContext(ctx).
		Where("app_id = ? AND version = ?", appID, DraftVersion).
		First(&wf)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("query draft workflow failed (app_id=%s): %w", appID, result.Error)
	}
	return &wf, nil
}
