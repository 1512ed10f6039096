// pkg/model/message.go
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ProcessingState 消息处理状态
type ProcessingState string

const (
	StateUnprocessed ProcessingState = "unprocessed"
	StateProcessed   ProcessingState = "processed"
	StateFailed      ProcessingState = "failed"
)

// Message 专家群聊消息（规范化后的统一格式）
type Message struct {
	ID              string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Sender          string          `gorm:"type:varchar(100);not null;index" json:"sender"`
	Channel         string          `gorm:"type:varchar(100)" json:"channel,omitempty"`
	Platform        string          `gorm:"type:varchar(30)" json:"platform,omitempty"` // 来源平台：json, discord, telegram
	SentAt          time.Time       `gorm:"not null;index" json:"sent_at"`              // 保留来源时区
	RawText         string          `gorm:"type:text;not null" json:"raw_text"`
	NormalizedText  string          `gorm:"type:text" json:"normalized_text"` // 小写、空白折叠、优先使用译文，仅用于抽取
	ProcessingState ProcessingState `gorm:"type:varchar(20);not null;default:'unprocessed';index" json:"processing_state"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// NewMessageID 根据发送者、发送时间和原始内容生成稳定的消息ID
// 相同的消息重复导入时得到相同的ID，配合主键冲突忽略实现幂等入库
func NewMessageID(sender string, sentAt time.Time, rawText string) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(sentAt.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(rawText))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// ExtractionText 返回用于抽取的文本，优先规范化文本
func (m *Message) ExtractionText() string {
	if m.NormalizedText != "" {
		return m.NormalizedText
	}
	return m.RawText
}
