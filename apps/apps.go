// Package apps resolves application records for generation requests.
package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/KOMKZ/go-appgen/appgen"
)

// ErrNotFound is returned when no app matches the lookup.
var ErrNotFound = errors.New("app not found")

// Record is the persisted app row.
type Record struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID          string    `gorm:"index;size:36" json:"tenant_id"`
	Name              string    `gorm:"size:255" json:"name"`
	Mode              string    `gorm:"size:32" json:"mode"`
	IsAgent           bool      `json:"is_agent"`
	MaxActiveRequests int64     `json:"max_active_requests"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName maps the model to its table.
func (Record) TableName() string {
	return "apps"
}

// Provider resolves apps by id.
type Provider interface {
	GetApp(ctx context.Context, appID string) (*appgen.App, error)
}

// GormProvider is the database-backed Provider.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a Provider over the given database.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// GetApp loads the app and validates its configured mode.
func (p *GormProvider) GetApp(ctx context.Context, appID string) (*appgen.App, error) {
	var rec Record
	result := p.db.WithContext(ctx).First(&rec, "id = ?", appID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("query app failed (app_id=%s): %w", appID, result.Error)
	}

	mode, err := appgen.ParseAppMode(rec.Mode)
	if err != nil {
		return nil, err
	}
	return &appgen.App{
		ID:                rec.ID,
		TenantID:          rec.TenantID,
		Name:              rec.Name,
		Mode:              mode,
		IsAgent:           rec.IsAgent,
		MaxActiveRequests: rec.MaxActiveRequests,
	}, nil
}

// StaticProvider serves a fixed app set; used for demos and tests.
type StaticProvider struct {
	apps map[string]*appgen.App
}

// NewStaticProvider creates a provider over the given apps.
func NewStaticProvider(list ...*appgen.App) *StaticProvider {
	m := make(map[string]*appgen.App, len(list))
	for _, app := range list {
		m[app.ID] = app
	}
	return &StaticProvider{apps: m}
}

// GetApp returns the app or ErrNotFound.
func (p *StaticProvider) GetApp(ctx context.Context, appID string) (*appgen.App, error) {
	if app, ok := p.apps[appID]; ok {
		return app, nil
	}
	return nil, ErrNotFound
}
