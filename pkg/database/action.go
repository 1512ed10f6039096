// pkg/database/action.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TradeScout/pkg/dedup"
	"TradeScout/pkg/model"
)

type ActionDB struct {
	db *gorm.DB
}

// txKeyStore 事务内的去重键存储
// 键抢占与动作写入同一事务，回滚时键登记一并撤销
type txKeyStore struct {
	tx *gorm.DB
}

var _ dedup.KeyStore = txKeyStore{}

// InsertIfAbsent 实现 dedup.KeyStore，主键冲突忽略插入保证检查+登记是单个原子操作
func (s txKeyStore) InsertIfAbsent(ctx context.Context, key, actionID string) (string, bool, error) {
	keyRec := model.DedupKeyRecord{Key: key, ActionID: actionID}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&keyRec)
	if result.Error != nil {
		return "", false, fmt.Errorf("登记去重键失败: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return "", true, nil
	}

	var existing model.DedupKeyRecord
	if err := s.tx.WithContext(ctx).First(&existing, "key = ?", key).Error; err != nil {
		return "", false, fmt.Errorf("查询去重键失败: %w", err)
	}
	return existing.ActionID, false, nil
}

// CommitMessage 在一个事务内提交一条消息的全部动作和状态推进
// 动作写入和消息状态更新要么同时生效要么都不生效，中断不会留下半写状态。
// accepted动作先抢占去重键（唯一约束上的冲突忽略插入），抢不到的降级为duplicate拒绝，
// 并发提交同一个键时数据库保证只有一个accepted落库
func (a *ActionDB) CommitMessage(ctx context.Context, msgID string, state model.ProcessingState, actions []*model.TradingAction) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := txKeyStore{tx: tx}

		for _, action := range actions {
			if action.Status == model.StatusAccepted {
				if action.ID == "" {
					action.ID = uuid.New().String()
				}

				existingID, inserted, err := keys.InsertIfAbsent(ctx, action.DedupKey, action.ID)
				if err != nil {
					return err
				}
				if !inserted {
					// 键已被占用，降级为重复拒绝并引用原始动作
					action.Status = model.StatusRejected
					action.RejectionReason = model.ReasonDuplicate
					action.DuplicateOfID = existingID
				}
			}

			if err := tx.Create(action).Error; err != nil {
				return fmt.Errorf("保存交易动作失败: %w", err)
			}
		}

		if err := tx.Model(&model.Message{}).
			Where("id = ?", msgID).
			Update("processing_state", state).Error; err != nil {
			return fmt.Errorf("更新消息状态失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("提交消息处理结果失败: %w", err)
	}
	return nil
}

// ActionFilter 交易动作查询条件
type ActionFilter struct {
	Symbol        string
	ActionType    model.ActionType
	Status        model.ActionStatus
	MinConfidence float64
	Start         time.Time
	End           time.Time
	Limit         int
	Offset        int
}

// List 按条件查询交易动作，给看板和监控消费
func (a *ActionDB) List(ctx context.Context, filter ActionFilter) ([]*model.TradingAction, error) {
	query := a.db.WithContext(ctx).Model(&model.TradingAction{})

	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinConfidence > 0 {
		query = query.Where("validated_confidence >= ?", filter.MinConfidence)
	}
	if !filter.Start.IsZero() {
		query = query.Where("signal_at >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("signal_at <= ?", filter.End)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var actions []*model.TradingAction
	err := query.Order("signal_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&actions).Error

	if err != nil {
		return nil, fmt.Errorf("查询交易动作失败: %w", err)
	}
	return actions, nil
}

// ActionStats 交易动作统计
type ActionStats struct {
	Total         int64                       `json:"total"`
	ByType        map[model.ActionType]int64  `json:"by_type"`
	ByStatus      map[model.ActionStatus]int64 `json:"by_status"`
	AvgConfidence float64                     `json:"average_confidence"`
	TopSymbols    map[string]int64            `json:"top_symbols"`
}

// Stats 汇总统计（总数、按类型/状态分布、平均置信度、前10标的）
func (a *ActionDB) Stats(ctx context.Context) (*ActionStats, error) {
	stats := &ActionStats{
		ByType:     make(map[model.ActionType]int64),
		ByStatus:   make(map[model.ActionStatus]int64),
		TopSymbols: make(map[string]int64),
	}

	db := a.db.WithContext(ctx)

	if err := db.Model(&model.TradingAction{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("统计动作总数失败: %w", err)
	}

	// 按类型统计
	var typeRows []struct {
		ActionType model.ActionType
		Count      int64
	}
	if err := db.Model(&model.TradingAction{}).
		Select("action_type, COUNT(*) as count").
		Group("action_type").
		Find(&typeRows).Error; err != nil {
		return nil, fmt.Errorf("按类型统计失败: %w", err)
	}
	for _, row := range typeRows {
		stats.ByType[row.ActionType] = row.Count
	}

	// 按状态统计
	var statusRows []struct {
		Status model.ActionStatus
		Count  int64
	}
	if err := db.Model(&model.TradingAction{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("按状态统计失败: %w", err)
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
	}

	// accepted动作的平均置信度
	var avg *float64
	if err := db.Model(&model.TradingAction{}).
		Where("status = ?", model.StatusAccepted).
		Select("AVG(validated_confidence)").
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("计算平均置信度失败: %w", err)
	}
	if avg != nil {
		stats.AvgConfidence = *avg
	}

	// 前10标的
	var symbolRows []struct {
		Symbol string
		Count  int64
	}
	if err := db.Model(&model.TradingAction{}).
		Select("symbol, COUNT(*) as count").
		Where("status = ?", model.StatusAccepted).
		Group("symbol").
		Order("count DESC").
		Limit(10).
		Find(&symbolRows).Error; err != nil {
		return nil, fmt.Errorf("统计热门标的失败: %w", err)
	}
	for _, row := range symbolRows {
		stats.TopSymbols[row.Symbol] = row.Count
	}

	return stats, nil
}
