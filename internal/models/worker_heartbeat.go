package models

// WorkerHeartbeat is a (machine name, last-seen timestamp) mapping, written
// whenever a worker polls for work.
type WorkerHeartbeat struct {
	MachineName string `gorm:"type:varchar(255);primarykey" json:"machine_name"`
	LastSeen    Time   `gorm:"not null" json:"last_seen"`
}

// TableName returns the table name for WorkerHeartbeat.
func (WorkerHeartbeat) TableName() string {
	return "worker_heartbeats"
}
