package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records teacher-initiated actions such as submission evaluations.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AllModels lists every entity managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Student{},
		&Teacher{},
		&Exercise{},
		&Quiz{},
		&QuizQuestion{},
		&ExerciseSubmission{},
		&Progress{},
		&QuizSubmission{},
		&QuizAnswer{},
		&ChatSession{},
		&ChatMessage{},
		&ActivityLog{},
	}
}
