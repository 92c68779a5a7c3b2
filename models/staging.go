package models

// NewPath is a raw user-dropped path queued for expansion. Lives in the
// staging database, table 'new_paths'.
type NewPath struct {
	Path      string `gorm:"primaryKey" json:"path"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (NewPath) TableName() string {
	return "new_paths"
}

// NewFile is an already-expanded regular file awaiting a copy into the
// holding directory. Lives in the staging database, table 'new_files'.
type NewFile struct {
	Path      string `gorm:"primaryKey" json:"path"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (NewFile) TableName() string {
	return "new_files"
}
