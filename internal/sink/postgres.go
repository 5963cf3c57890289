// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bonial-oss/physec-risk/internal/types"
)

// RiskScenario is the persisted form of a ThreatScore.
type RiskScenario struct {
	ID                  string `gorm:"primaryKey;size:36"`
	CreatedAt           time.Time
	AssessmentID        string   `gorm:"size:64;index"`
	ThreatID            string   `gorm:"size:100;not null"`
	ThreatName          string   `gorm:"size:255"`
	Category            string   `gorm:"size:100"`
	Likelihood          int      `gorm:"not null"`
	Vulnerability       int      `gorm:"not null"`
	Impact              int      `gorm:"not null"`
	Exposure            *float64 `gorm:"type:numeric(4,2)"`
	InherentRisk        float64  `gorm:"not null"`
	NormalizedRisk      float64  `gorm:"type:numeric(5,2);not null"`
	RiskLevel           string   `gorm:"size:20;not null;index"`
	Method              string   `gorm:"size:20"`
	Narrative           string   `gorm:"type:text"`
	ContributingFactors string   `gorm:"type:text"` // JSON array
	RecommendedControls string   `gorm:"type:text"` // JSON array
}

func (RiskScenario) TableName() string { return "risk_scenarios" }

// Postgres writes scores to the risk_scenarios table.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return NewPostgres(db)
}

// NewPostgres wraps an open connection and migrates the table.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&RiskScenario{}); err != nil {
		return nil, fmt.Errorf("migrating risk_scenarios: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}
	return sqlDB.Close()
}

func (p *Postgres) Save(ctx context.Context, assessmentID string, s types.ThreatScore) (string, error) {
	row, err := toRow(assessmentID, s)
	if err != nil {
		return "", err
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("inserting risk scenario: %w", err)
	}
	return row.ID, nil
}

func toRow(assessmentID string, s types.ThreatScore) (RiskScenario, error) {
	factors, err := json.Marshal(nonNil(s.ContributingFactors))
	if err != nil {
		return RiskScenario{}, fmt.Errorf("encoding contributing factors: %w", err)
	}
	controls, err := json.Marshal(nonNil(s.RecommendedControlIDs))
	if err != nil {
		return RiskScenario{}, fmt.Errorf("encoding recommended controls: %w", err)
	}
	return RiskScenario{
		ID:                  uuid.NewString(),
		AssessmentID:        assessmentID,
		ThreatID:            s.ThreatID,
		ThreatName:          s.ThreatName,
		Category:            s.Category,
		Likelihood:          s.Likelihood,
		Vulnerability:       s.Vulnerability,
		Impact:              s.Impact,
		Exposure:            s.Exposure,
		InherentRisk:        s.InherentRisk,
		NormalizedRisk:      s.NormalizedRisk,
		RiskLevel:           string(s.RiskLevel),
		Method:              string(s.Method),
		Narrative:           s.Narrative,
		ContributingFactors: string(factors),
		RecommendedControls: string(controls),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
