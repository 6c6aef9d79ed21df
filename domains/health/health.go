package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityCacheStore EntityType = "cache_store"
	EntityDatabase   EntityType = "database"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	EntityType  EntityType `json:"entity_type"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

type IHealthUsecase interface {
	CheckAll(ctx context.Context) []HealthRecord
	GetStatus(ctx context.Context) []HealthRecord
	StartPeriodicChecks(ctx context.Context)
}
