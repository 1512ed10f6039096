// pkg/database/message.go
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TradeScout/pkg/model"
)

type MessageDB struct {
	db *gorm.DB
}

// SaveBatch 批量入库，主键冲突的消息直接忽略
// 消息ID由内容哈希生成，重复导入同一批文件不会产生新记录
func (m *MessageDB) SaveBatch(ctx context.Context, messages []model.Message) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	result := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&messages)
	if result.Error != nil {
		return 0, fmt.Errorf("批量保存消息失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// ListUnprocessed 按发送时间取未处理的消息
func (m *MessageDB) ListUnprocessed(ctx context.Context, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := m.db.WithContext(ctx).
		Where("processing_state = ?", model.StateUnprocessed).
		Order("sent_at ASC").
		Limit(limit).
		Find(&messages).Error

	if err != nil {
		return nil, fmt.Errorf("查询未处理消息失败: %w", err)
	}
	return messages, nil
}

// UpdateState 推进消息处理状态
func (m *MessageDB) UpdateState(ctx context.Context, id string, state model.ProcessingState) error {
	err := m.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Update("processing_state", state).Error

	if err != nil {
		return fmt.Errorf("更新消息状态失败: %w", err)
	}
	return nil
}

// GetRecent 获取最近的消息，state为空时不过滤
func (m *MessageDB) GetRecent(ctx context.Context, state model.ProcessingState, limit int) ([]model.Message, error) {
	query := m.db.WithContext(ctx).Order("sent_at DESC").Limit(limit)
	if state != "" {
		query = query.Where("processing_state = ?", state)
	}

	var messages []model.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	return messages, nil
}

// CountByState 按处理状态统计消息数
func (m *MessageDB) CountByState(ctx context.Context) (map[model.ProcessingState]int64, error) {
	var rows []struct {
		ProcessingState model.ProcessingState
		Count           int64
	}

	err := m.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("processing_state, COUNT(*) as count").
		Group("processing_state").
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("统计消息状态失败: %w", err)
	}

	counts := make(map[model.ProcessingState]int64, len(rows))
	for _, row := range rows {
		counts[row.ProcessingState] = row.Count
	}
	return counts, nil
}
