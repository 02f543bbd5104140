package domain

import "time"

// InvalidationJob asks a worker to drop one user's cached roles in one scope.
type InvalidationJob struct {
	ID         string    `json:"id" bson:"job_id"`
	UserID     int64     `json:"userId" bson:"user_id"`
	TenantID   *int64    `json:"tenantId,omitempty" bson:"tenant_id,omitempty"`
	Attempts   int       `json:"attempts" bson:"attempts"`
	EnqueuedAt time.Time `json:"enqueuedAt" bson:"enqueued_at"`
	LastError  string    `json:"lastError,omitempty" bson:"last_error,omitempty"`
}

// Scope returns the cache scope the job targets.
func (j InvalidationJob) Scope() ScopeKey {
	return ScopeOf(j.TenantID)
}
