package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationTrace struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationId string         `gorm:"type:varchar(255);not null;index"`
	TenantId       string         `gorm:"type:varchar(255);not null;index"`
	AgentId        string         `gorm:"type:varchar(255)"`
	Message        string         `gorm:"type:text;not null"`
	DebugMode      bool           `gorm:"default:false"`
	Stages         datatypes.JSON `gorm:"type:jsonb"`
	StagesExecuted int            `gorm:"default:0"`
	StagesSkipped  int            `gorm:"default:0"`
	HadError       bool           `gorm:"default:false"`
	RespondedBy    string         `gorm:"type:varchar(100)"`
	FinalAnswer    *string        `gorm:"type:text"`
	StartedAt      time.Time      `gorm:"not null"`
	EndedAt        *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (ConversationTrace) TableName() string {
	return "conversation_traces"
}
