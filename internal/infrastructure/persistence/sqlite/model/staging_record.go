package model

// StagingRecord mirrors the upstream prefill table: one row per capability
// token, JSON columns for the payload and the two workflow outcomes.
type StagingRecord struct {
	Token         string  `gorm:"column:token;type:text;primaryKey"`
	PayloadJSON   string  `gorm:"column:payload;type:text;not null"`
	CreatedAt     int64   `gorm:"column:created_at;not null"`
	UsedAt        *int64  `gorm:"column:used_at"`
	UsedCount     int     `gorm:"column:used_count;not null;default:0"`
	GeneratedJSON *string `gorm:"column:generated;type:text"`
	GeneratedAt   *int64  `gorm:"column:generated_at"`
	PublishJSON   *string `gorm:"column:publish_result;type:text"`
	PublishedAt   *int64  `gorm:"column:published_at"`
}

func (StagingRecord) TableName() string {
	return "staging_records"
}
