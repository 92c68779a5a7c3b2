package models

// Face represents one detected face instance in a media file.
// It corresponds to the 'faces' table.
type Face struct {
	ID          uint `gorm:"primaryKey;autoIncrement" json:"id"`
	MediaFileID uint `gorm:"not null;index" json:"media_file_id"`

	// nil for still images; set to the sampled frame's offset for video and
	// animated-image frames
	TimeOffsetSec *float64 `gorm:"column:time_offset_sec" json:"time_offset_sec,omitempty"`

	// L2-normalized embedding as a little-endian float32 BLOB
	Embedding []byte  `gorm:"not null" json:"-"`
	Score     float32 `gorm:"not null" json:"score"` // detector confidence in [0,1]

	// bounding box in source-frame pixel coordinates
	X1 float32 `gorm:"not null" json:"x1"`
	Y1 float32 `gorm:"not null" json:"y1"`
	X2 float32 `gorm:"not null" json:"x2"`
	Y2 float32 `gorm:"not null" json:"y2"`

	// five (x,y) facial keypoints used for alignment, 10 float32s
	Landmarks []byte `gorm:"not null" json:"-"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp

	MediaFile *MediaFile `gorm:"foreignKey:MediaFileID;constraint:OnDelete:CASCADE" json:"media_file,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}

// GetEmbedding converts the BLOB data to []float32.
func (f *Face) GetEmbedding() []float32 {
	return DecodeVector(f.Embedding)
}

// SetEmbedding converts []float32 to BLOB data.
func (f *Face) SetEmbedding(embedding []float32) {
	f.Embedding = EncodeVector(embedding)
}

// GetLandmarks converts the landmark BLOB to []float32 (x0,y0 .. x4,y4).
func (f *Face) GetLandmarks() []float32 {
	return DecodeVector(f.Landmarks)
}

// SetLandmarks converts the 10 landmark floats to BLOB data.
func (f *Face) SetLandmarks(landmarks []float32) {
	f.Landmarks = EncodeVector(landmarks)
}
