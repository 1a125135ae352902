package models

// TargetRendition is a desired output profile for a request: a size plus
// the video and audio bitrates for that rendition. The slice index is
// stable and referenced by Parts as TargetIndex.
type TargetRendition struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	VideoBitrate int `json:"video_bitrate"` // kbps
	AudioBitrate int `json:"audio_bitrate"` // kbps
}

// Request is a logical user submission. It is created once and never
// mutated; its CorrelationID binds together the Jobs and Parts it owns.
type Request struct {
	// CorrelationID is an opaque 128-bit identifier, unique per request.
	CorrelationID string `gorm:"type:varchar(36);primarykey" json:"correlation_id"`

	// VideoSource is the source video file path (optional).
	VideoSource string `gorm:"type:text" json:"video_source,omitempty"`

	// AudioSource is the source audio file path (optional); distinct from
	// VideoSource iff the request declared alternate audio.
	AudioSource string `gorm:"type:text" json:"audio_source,omitempty"`

	// Destination is the output destination path.
	Destination string `gorm:"type:text;not null" json:"destination"`

	// Needed is the "needed by" deadline timestamp.
	Needed Time `gorm:"index" json:"needed"`

	// EnableDash enables MPEG-DASH-compatible encoding parameters.
	EnableDash bool `gorm:"not null;default:false" json:"enable_dash"`

	// Targets is the ordered list of target renditions, serialized as JSON.
	Targets []TargetRendition `gorm:"serializer:json" json:"targets"`

	CreatedAt Time `json:"created_at"`
}

// TableName returns the table name for Request.
func (Request) TableName() string {
	return "requests"
}

// HasSource reports whether at least one of video/audio source is set, the
// §3 invariant enforced at validation time.
func (r *Request) HasSource() bool {
	return r.VideoSource != "" || r.AudioSource != ""
}
