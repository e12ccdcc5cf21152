package models

// PredictionRecord is one row of the Lakebase-synced predictions table.
// Rows are written by the external sync process; this service only reads
// them. The table has no primary key, so there is no gorm.Model here.
type PredictionRecord struct {
	Path        string  `gorm:"column:path" json:"path"`
	Label       string  `gorm:"column:label" json:"label"`
	LabelDetail string  `gorm:"column:labelDetail" json:"label_detail"`
	Score       float64 `gorm:"column:score" json:"score"`
}
