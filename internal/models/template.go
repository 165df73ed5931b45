package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// InterviewTemplate is the behavior template a session references. The core
// only resolves it and hands it to the worker launcher; the prompt/voice
// parameters are opaque here.
type InterviewTemplate struct {
	ID    string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID string `gorm:"column:org_id;type:text;index" json:"org_id"`
	Name  string `gorm:"column:name;type:text" json:"name"`

	Persona  string `gorm:"column:persona;type:text" json:"persona"`
	Voice    string `gorm:"column:voice;type:text" json:"voice"`       // TTS voice id
	Language string `gorm:"column:language;type:text" json:"language"` // "en-US", "id-ID"

	Questions pq.StringArray `gorm:"column:questions;type:text[]" json:"questions"`

	// Params holds provider-specific tuning (model, temperature, ...) as raw JSON.
	Params datatypes.JSON `gorm:"column:params;type:jsonb" json:"params,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (InterviewTemplate) TableName() string { return "interview_templates" }
