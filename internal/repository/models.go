package repository

import (
	"database/sql/driver"
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a benchmark session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// BenchSession represents the bench_sessions table.
type BenchSession struct {
	ID          int64         `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   string        `gorm:"column:session_id;type:varchar(36);uniqueIndex"`
	Host        string        `gorm:"column:host;type:varchar(255)"`
	Version     string        `gorm:"column:version;type:varchar(64)"`
	GoMaxProcs  int           `gorm:"column:gomaxprocs"`
	DatasetSize int64         `gorm:"column:dataset_size"`
	Range       int           `gorm:"column:bin_range"`
	Status      SessionStatus `gorm:"column:status;type:varchar(16)"`
	Error       string        `gorm:"column:error;type:text"`
	Params      JSONField     `gorm:"column:params;type:json"`
	StartedAt   time.Time     `gorm:"column:started_at"`
	FinishedAt  *time.Time    `gorm:"column:finished_at"`
}

// TableName returns the table name for BenchSession.
func (BenchSession) TableName() string {
	return "bench_sessions"
}

// BenchSample represents the bench_samples table: one timed run.
type BenchSample struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;type:varchar(36);index"`
	Strategy  string    `gorm:"column:strategy;type:varchar(32)"`
	Policy    string    `gorm:"column:policy;type:varchar(32)"`
	Threads   int       `gorm:"column:threads"`
	ChunkSize int       `gorm:"column:chunk_size"`
	Run       int       `gorm:"column:run"`
	ElapsedNs int64     `gorm:"column:elapsed_ns"`
	Valid     bool      `gorm:"column:valid"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for BenchSample.
func (BenchSample) TableName() string {
	return "bench_samples"
}

// Elapsed returns the run time as a duration.
func (s BenchSample) Elapsed() time.Duration {
	return time.Duration(s.ElapsedNs)
}

// AllModels lists every table for migration.
func AllModels() []interface{} {
	return []interface{}{&BenchSession{}, &BenchSample{}}
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
