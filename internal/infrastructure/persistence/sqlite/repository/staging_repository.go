package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
	"smartreply/internal/infrastructure/persistence/sqlite/model"
	"smartreply/internal/ports"
)

// StagingRepository implements ports.StagingLedger on sqlite.
type StagingRepository struct {
	db *gorm.DB
}

var _ ports.StagingLedger = (*StagingRepository)(nil)

func NewStagingRepository(db *gorm.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

func (r *StagingRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *StagingRepository) Create(ctx context.Context, record ports.StagingRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(record.Token)
	if token == "" {
		return errors.New("token is required")
	}

	payloadJSON, err := json.Marshal(record.Payload)
	if err != nil {
		return errs.Wrap(err, "marshal payload")
	}

	row := model.StagingRecord{
		Token:       token,
		PayloadJSON: string(payloadJSON),
		CreatedAt:   record.CreatedAt.Unix(),
	}

	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert staging record")
	}
	return nil
}

func (r *StagingRepository) Get(ctx context.Context, token string) (ports.StagingRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.StagingRecord{}, err
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ports.StagingRecord{}, ports.ErrRecordNotFound
	}

	var row model.StagingRecord
	if err := db.Where("token = ?", trimmed).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StagingRecord{}, ports.ErrRecordNotFound
		}
		return ports.StagingRecord{}, errs.Wrap(err, "query staging record")
	}

	return mapRecord(row)
}

func (r *StagingRepository) SetGenerated(ctx context.Context, token string, replies []reply.GeneratedReply, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	generatedJSON, err := json.Marshal(replies)
	if err != nil {
		return errs.Wrap(err, "marshal generated replies")
	}

	value := string(generatedJSON)
	ts := at.Unix()
	result := db.Model(&model.StagingRecord{}).
		Where("token = ?", strings.TrimSpace(token)).
		Updates(map[string]any{
			"generated":    &value,
			"generated_at": &ts,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update generated replies")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}

func (r *StagingRepository) SetPublishResult(ctx context.Context, token string, record reply.PublishRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	publishJSON, err := json.Marshal(record)
	if err != nil {
		return errs.Wrap(err, "marshal publish record")
	}

	value := string(publishJSON)
	ts := record.Timestamp.Unix()
	result := db.Model(&model.StagingRecord{}).
		Where("token = ?", strings.TrimSpace(token)).
		Updates(map[string]any{
			"publish_result": &value,
			"published_at":   &ts,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update publish result")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}

func (r *StagingRepository) TouchUsage(ctx context.Context, token string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	ts := at.Unix()
	result := db.Model(&model.StagingRecord{}).
		Where("token = ?", strings.TrimSpace(token)).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"used_at":    &ts,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update usage counters")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}

func (r *StagingRepository) Delete(ctx context.Context, token string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("token = ?", strings.TrimSpace(token)).Delete(&model.StagingRecord{}).Error; err != nil {
		return errs.Wrap(err, "delete staging record")
	}
	return nil
}

func (r *StagingRepository) DeleteExpired(ctx context.Context, createdBefore time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("created_at < ?", createdBefore.Unix()).Delete(&model.StagingRecord{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete expired staging records")
	}
	return result.RowsAffected, nil
}

func mapRecord(row model.StagingRecord) (ports.StagingRecord, error) {
	var payload reply.Payload
	if err := json.Unmarshal([]byte(row.PayloadJSON), &payload); err != nil {
		return ports.StagingRecord{}, errs.Wrap(err, "unmarshal payload")
	}

	record := ports.StagingRecord{
		Token:     row.Token,
		Payload:   payload,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		UsedCount: row.UsedCount,
	}

	if row.UsedAt != nil {
		usedAt := time.Unix(*row.UsedAt, 0).UTC()
		record.UsedAt = &usedAt
	}

	if row.GeneratedJSON != nil && *row.GeneratedJSON != "" {
		if err := json.Unmarshal([]byte(*row.GeneratedJSON), &record.Generated); err != nil {
			return ports.StagingRecord{}, errs.Wrap(err, "unmarshal generated replies")
		}
	}

	if row.PublishJSON != nil && *row.PublishJSON != "" {
		var publish reply.PublishRecord
		if err := json.Unmarshal([]byte(*row.PublishJSON), &publish); err != nil {
			return ports.StagingRecord{}, errs.Wrap(err, "unmarshal publish record")
		}
		record.Publish = &publish
	}

	return record, nil
}
