package models

// JobKind identifies what the external media tool invocation does.
type JobKind string

const (
	// JobKindAudio is a full-duration audio-only encode for one target rendition.
	JobKindAudio JobKind = "audio"
	// JobKindVideo is a chunked video encode covering all target renditions.
	JobKindVideo JobKind = "video"
	// JobKindMux combines a video track and an audio track into a container.
	JobKindMux JobKind = "mux"
)

// Job is a unit of work runnable by a single external-tool invocation.
//
// The lease fields (Active, Taken, Done, Heartbeat) implement the state
// machine in §4.4: a job is dispatchable iff
// Active && !Done && (!Taken || Heartbeat is older than now-T_lease).
type Job struct {
	ID uint `gorm:"primarykey" json:"id"`

	// CorrelationID is the owning request's correlation id.
	CorrelationID string `gorm:"type:varchar(36);not null;index" json:"correlation_id"`

	// Arguments is the fully synthesized argument string for the external tool.
	Arguments string `gorm:"type:text;not null" json:"arguments"`

	// Needed is the deadline inherited from the owning request; sole
	// ordering key for dispatch (ties broken by ID).
	Needed Time `gorm:"index" json:"needed"`

	// Kind distinguishes audio, video and mux jobs.
	Kind JobKind `gorm:"type:varchar(10);not null" json:"kind"`

	// Source is the input file path this job reads from.
	Source string `gorm:"type:text;not null" json:"source"`

	// ChunkDuration is the planned duration in seconds; for video jobs this
	// is the fixed chunk size, for audio jobs the full source duration.
	ChunkDuration int `json:"chunk_duration"`

	// Active is false once a job has been paused (§4.4); paused jobs are
	// never dispatchable.
	Active bool `gorm:"not null;default:true;index" json:"active"`

	// Taken is true once some worker has claimed the job.
	Taken bool `gorm:"not null;default:false;index" json:"taken"`

	// Done is true once a worker has reported completion.
	Done bool `gorm:"not null;default:false;index" json:"done"`

	// Heartbeat is the last time a claiming worker renewed its lease; nil
	// while the job has never been taken.
	Heartbeat *Time `json:"heartbeat,omitempty"`

	// LastError holds the reason passed to MarkFailed, if any.
	LastError string `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt Time `json:"created_at"`
	UpdatedAt Time `json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// Dispatchable reports whether the job is eligible for ClaimNext at the
// given instant, per the §3 invariant.
func (j *Job) Dispatchable(now Time, leaseTimeout int) bool {
	if !j.Active || j.Done {
		return false
	}
	if !j.Taken {
		return true
	}
	if j.Heartbeat == nil {
		return true
	}
	return now.Sub(*j.Heartbeat).Seconds() > float64(leaseTimeout)
}
