package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mengeric/extractjob-go/artifact"
)

// refPrefix 数据库产物引用前缀，引用形如 db:<jobID>。
const refPrefix = "db:"

// model 映射到数据库表。
type model struct {
	ID        uint      `gorm:"primaryKey"`
	JobID     string    `gorm:"uniqueIndex;size:191"`
	Body      []byte    `gorm:"type:blob"`
	Size      int64     `gorm:"default:0"`
	WrittenAt time.Time `gorm:"index"`
}

func (model) TableName() string { return "artifacts" }

// Store 基于 GORM 的 artifact.Store 实现。
type Store struct {
	db         *gorm.DB
	apiVersion string
}

// New 创建 Store，调用方应自行执行 AutoMigrate（或调用本包 AutoMigrate）。
func New(db *gorm.DB, apiVersion string) *Store { return &Store{db: db, apiVersion: apiVersion} }

// AutoMigrate 建表。
func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&model{}) }

// Write 实现 artifact.Store.Write；同一任务重复写入会覆盖。
func (s *Store) Write(ctx context.Context, jobID string, payload any) (string, error) {
	now := time.Now()
	b, err := artifact.Marshal(artifact.Info{JobID: jobID, WrittenAt: now, APIVersion: s.apiVersion}, payload)
	if err != nil {
		return "", err
	}
	m := model{JobID: jobID, Body: b, Size: int64(len(b)), WrittenAt: now}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "size", "written_at"}),
	}).Create(&m).Error
	if err != nil {
		return "", err
	}
	return refPrefix + jobID, nil
}

// Read 实现 artifact.Store.Read。
func (s *Store) Read(ctx context.Context, ref string) (*artifact.Artifact, error) {
	m, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	return artifact.Unmarshal(m.Body)
}

// Size 实现 artifact.Store.Size。
func (s *Store) Size(ctx context.Context, ref string) (int64, error) {
	jobID, ok := parseRef(ref)
	if !ok {
		return 0, artifact.ErrNotFound
	}
	var m model
	err := s.db.WithContext(ctx).Select("size").Where("job_id = ?", jobID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, artifact.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return m.Size, nil
}

// Exists 实现 artifact.Store.Exists。
func (s *Store) Exists(ctx context.Context, ref string) bool {
	jobID, ok := parseRef(ref)
	if !ok {
		return false
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// Delete 实现 artifact.Store.Delete。
func (s *Store) Delete(ctx context.Context, ref string) error {
	jobID, ok := parseRef(ref)
	if !ok {
		return nil
	}
	return s.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&model{}).Error
}

func (s *Store) find(ctx context.Context, ref string) (*model, error) {
	jobID, ok := parseRef(ref)
	if !ok {
		return nil, artifact.ErrNotFound
	}
	var m model
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parseRef(ref string) (string, bool) {
	id, ok := strings.CutPrefix(ref, refPrefix)
	return id, ok && id != ""
}
