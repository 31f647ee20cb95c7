// Copyright 2025 Bloathound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists the threat knowledge base and per-user ignore
// lists in MySQL. Records are upserted keyed by program name by the
// offline enrichment pipeline; the scanner only reads them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// threatRow is the storage shape of a ThreatRecord. The set-valued fields
// are JSON-encoded columns so the schema survives records with arbitrary
// keyword counts.
type threatRow struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	ProgramName      string `gorm:"column:program_name;size:512;uniqueIndex;not null"`
	GenericName      string `gorm:"column:generic_name;size:255"`
	Publisher        string `gorm:"column:publisher;size:255"`
	RiskScore        int    `gorm:"column:risk_score"`
	Reason           string `gorm:"column:reason;type:text"`
	BrandKeywords    string `gorm:"column:brand_keywords;type:text"`
	AlternativeNames string `gorm:"column:alternative_names;type:text"`
	ProcessNames     string `gorm:"column:process_names;type:text"`
	UpdatedAt        time.Time
	CreatedAt        time.Time
}

func (threatRow) TableName() string { return "threat_records" }

// ignoreRow is one user's ignore list, stored as a JSON array of
// lowercase names.
type ignoreRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserName  string `gorm:"column:user_name;size:255;uniqueIndex;not null"`
	Items     string `gorm:"column:items;type:text"`
	UpdatedAt time.Time
}

func (ignoreRow) TableName() string { return "ignore_lists" }

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL using the configured DSN fields, migrates the
// schema and returns the store.
func Open(cfg models.StoreConfig) (*Store, error) {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DatabaseName, charset)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to threat store: %w", err)
	}

	if err := db.AutoMigrate(&threatRow{}, &ignoreRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate threat store schema: %w", err)
	}

	logger.L.WithField("database", cfg.DatabaseName).Info("Threat store connected")
	return &Store{db: db}, nil
}

// GetAllThreats returns every record of the knowledge base in stable
// (insertion) order. Missing optional fields decode to empty values.
func (s *Store) GetAllThreats(ctx context.Context) ([]models.ThreatRecord, error) {
	var rows []threatRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch threat records: %w", err)
	}

	records := make([]models.ThreatRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

// ThreatCount returns the number of stored threat records.
func (s *Store) ThreatCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&threatRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count threat records: %w", err)
	}
	return count, nil
}

// UpsertThreats inserts or updates records keyed by program name. Only
// the enrichment pipeline calls this.
func (s *Store) UpsertThreats(ctx context.Context, records []models.ThreatRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]threatRow, 0, len(records))
	for _, r := range records {
		if r.ProgramName == "" {
			continue
		}
		rows = append(rows, recordToRow(r))
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "program_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"generic_name", "publisher", "risk_score", "reason",
			"brand_keywords", "alternative_names", "process_names", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert threat records: %w", err)
	}

	logger.L.WithField("count", len(rows)).Info("Threat records upserted")
	return nil
}

// GetIgnoreList returns the user's ignore list, empty when the user has
// never saved one.
func (s *Store) GetIgnoreList(ctx context.Context, user string) ([]string, error) {
	var row ignoreRow
	err := s.db.WithContext(ctx).Where("user_name = ?", user).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ignore list: %w", err)
	}
	return decodeStrings(row.Items), nil
}

// SaveIgnoreList replaces the user's whole ignore list. Entries are
// deduplicated and lowercased.
func (s *Store) SaveIgnoreList(ctx context.Context, user string, items []string) error {
	unique := make(map[string]struct{}, len(items))
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, dup := unique[item]; dup {
			continue
		}
		unique[item] = struct{}{}
		normalized = append(normalized, item)
	}

	row := ignoreRow{UserName: user, Items: encodeStrings(normalized)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save ignore list: %w", err)
	}

	logger.L.WithFields(map[string]interface{}{
		"user":  user,
		"count": len(normalized),
	}).Info("Ignore list saved")
	return nil
}

// AddToIgnoreList appends one entry to the user's ignore list.
func (s *Store) AddToIgnoreList(ctx context.Context, user, item string) error {
	current, err := s.GetIgnoreList(ctx, user)
	if err != nil {
		return err
	}
	return s.SaveIgnoreList(ctx, user, append(current, item))
}

// RemoveFromIgnoreList removes one entry from the user's ignore list.
func (s *Store) RemoveFromIgnoreList(ctx context.Context, user, item string) error {
	current, err := s.GetIgnoreList(ctx, user)
	if err != nil {
		return err
	}
	item = strings.ToLower(strings.TrimSpace(item))
	kept := current[:0]
	for _, c := range current {
		if c != item {
			kept = append(kept, c)
		}
	}
	return s.SaveIgnoreList(ctx, user, kept)
}

func rowToRecord(row threatRow) models.ThreatRecord {
	return models.ThreatRecord{
		ProgramName:      row.ProgramName,
		GenericName:      row.GenericName,
		Publisher:        row.Publisher,
		RiskScore:        row.RiskScore,
		Reason:           row.Reason,
		BrandKeywords:    decodeStrings(row.BrandKeywords),
		AlternativeNames: decodeStrings(row.AlternativeNames),
		ProcessNames:     row.ProcessNames,
	}
}

func recordToRow(r models.ThreatRecord) threatRow {
	return threatRow{
		ProgramName:      r.ProgramName,
		GenericName:      strings.ToLower(strings.TrimSpace(r.GenericName)),
		Publisher:        r.Publisher,
		RiskScore:        r.RiskScore,
		Reason:           r.Reason,
		BrandKeywords:    encodeStrings(r.BrandKeywords),
		AlternativeNames: encodeStrings(r.AlternativeNames),
		ProcessNames:     r.ProcessNames,
	}
}

func encodeStrings(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(data string) []string {
	if data == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}
	return items
}
