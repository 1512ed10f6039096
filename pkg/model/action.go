// pkg/model/action.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionType 交易动作类型枚举
type ActionType string

const (
	ActionBuy     ActionType = "buy"
	ActionSell    ActionType = "sell"
	ActionHold    ActionType = "hold"
	ActionUnknown ActionType = "unknown"
)

// ParseActionType 解析动作类型，无法识别时返回 unknown
func ParseActionType(s string) ActionType {
	switch ActionType(s) {
	case ActionBuy, ActionSell, ActionHold:
		return ActionType(s)
	default:
		return ActionUnknown
	}
}

// ActionStatus 交易动作状态
type ActionStatus string

const (
	StatusAccepted ActionStatus = "accepted"
	StatusRejected ActionStatus = "rejected"
)

// 拒绝原因
const (
	ReasonInvalidAction      = "invalid_action"
	ReasonInvalidSymbol      = "invalid_symbol"
	ReasonPriceOutOfRange    = "price_out_of_range"
	ReasonQuantityOutOfRange = "quantity_out_of_range"
	ReasonLowConfidence      = "low_confidence"
	ReasonDuplicate          = "duplicate"
)

// TradingActionCandidate 抽取器产出的候选动作（不落库，立即交给校验器消费）
type TradingActionCandidate struct {
	ActionType      ActionType `json:"action_type"`
	Symbol          string     `json:"symbol"`
	Price           *float64   `json:"price,omitempty"`
	Quantity        *float64   `json:"quantity,omitempty"`
	RawConfidence   float64    `json:"raw_confidence"`
	SourceMessageID string     `json:"source_message_id"`
}

// ValidationResult 校验结果
type ValidationResult struct {
	Accepted   bool    `json:"accepted"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// TradingAction 持久化的交易动作
// 一经落库不再修改，修正通过新记录引用旧记录实现
type TradingAction struct {
	ID                  string       `gorm:"type:uuid;primaryKey" json:"id"`
	SourceMessageID     string       `gorm:"type:varchar(64);not null;index" json:"source_message_id"`
	Sender              string       `gorm:"type:varchar(100);not null;index" json:"sender"`
	ActionType          ActionType   `gorm:"type:varchar(10);not null;index" json:"action_type"`
	Symbol              string       `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Price               *float64     `gorm:"type:decimal(18,6)" json:"price,omitempty"`
	Quantity            *float64     `gorm:"type:decimal(18,6)" json:"quantity,omitempty"`
	RawConfidence       float64      `gorm:"type:decimal(5,4);not null" json:"raw_confidence"`
	ValidatedConfidence float64      `gorm:"type:decimal(5,4);not null" json:"validated_confidence"`
	Status              ActionStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	RejectionReason     string       `gorm:"type:varchar(40)" json:"rejection_reason,omitempty"`
	DedupKey            string       `gorm:"type:varchar(64);index" json:"dedup_key"`
	DuplicateOfID       string       `gorm:"type:uuid" json:"duplicate_of_id,omitempty"` // 重复时引用原始记录
	SupersedesID        string       `gorm:"type:uuid" json:"supersedes_id,omitempty"`   // 修正时引用被取代的记录
	SignalAt            time.Time    `gorm:"not null;index" json:"signal_at"`            // 原始消息发送时间
	CreatedAt           time.Time    `gorm:"index" json:"created_at"`

	// 关联
	SourceMessage Message `gorm:"foreignKey:SourceMessageID" json:"source_message,omitempty"`
}

func (a *TradingAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (TradingAction) TableName() string {
	return "trading_actions"
}

// DedupKeyRecord 去重键记录，accepted动作的唯一性由该表的主键约束保证
type DedupKeyRecord struct {
	Key       string    `gorm:"type:varchar(64);primaryKey" json:"key"`
	ActionID  string    `gorm:"type:uuid;not null" json:"action_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (DedupKeyRecord) TableName() string {
	return "dedup_keys"
}
