package models

import "math"

// MediaFile represents one physically stored file in the content-addressed
// store. It corresponds to the 'media_files' table.
type MediaFile struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ContentHash  string `gorm:"uniqueIndex;not null" json:"content_hash"` // hex SHA-256, also the on-disk filename
	OriginalName string `gorm:"not null" json:"original_name"`            // retained for display/export only
	MimeType     string `gorm:"not null" json:"mime_type"`                // sniffed from content, never from the extension
	Description  string `gorm:"not null;default:''" json:"description"`

	// little-endian float32 BLOB; nil until a description has been embedded
	DescriptionEmbedding []byte `gorm:"column:description_embedding" json:"-"`

	// optional EXIF capture, best-effort at ingest
	Width       *int    `gorm:"" json:"width,omitempty"`
	Height      *int    `gorm:"" json:"height,omitempty"`
	TakenAt     *int64  `gorm:"index" json:"taken_at,omitempty"` // Unix timestamp
	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp

	// Relationships
	Faces []Face `gorm:"foreignKey:MediaFileID;constraint:OnDelete:CASCADE" json:"faces,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (MediaFile) TableName() string {
	return "media_files"
}

// GetDescriptionEmbedding converts the BLOB data to []float32.
func (m *MediaFile) GetDescriptionEmbedding() []float32 {
	return DecodeVector(m.DescriptionEmbedding)
}

// SetDescriptionEmbedding converts []float32 to BLOB data.
func (m *MediaFile) SetDescriptionEmbedding(embedding []float32) {
	m.DescriptionEmbedding = EncodeVector(embedding)
}

// EncodeVector packs a float32 vector into a little-endian BLOB, 4 bytes per
// component. The column is sized from the dimension declared in config, so
// no length header is stored.
func EncodeVector(vector []float32) []byte {
	if len(vector) == 0 {
		return nil
	}
	data := make([]byte, len(vector)*4)
	for i, val := range vector {
		offset := i * 4
		bits := math.Float32bits(val)
		data[offset] = byte(bits)
		data[offset+1] = byte(bits >> 8)
		data[offset+2] = byte(bits >> 16)
		data[offset+3] = byte(bits >> 24)
	}
	return data
}

// DecodeVector unpacks a little-endian BLOB back into a float32 vector.
func DecodeVector(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	vector := make([]float32, len(data)/4)
	for i := 0; i < len(vector); i++ {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
