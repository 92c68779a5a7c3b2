package models

// TableStat keeps a maintained row count per table so the search engine can
// pick a random-sampling strategy without paying COUNT(*) on every call.
// It corresponds to the 'table_stats' table; GORM's default naming already
// maps TableStat to 'table_stats', and the TableName field (spec-mandated
// primary key) precludes a TableName() method.
type TableStat struct {
	TableName string `gorm:"primaryKey" json:"table_name"`
	RowCount  int64  `gorm:"not null;default:0" json:"row_count"`
}
