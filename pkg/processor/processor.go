// pkg/processor/processor.go
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"TradeScout/pkg/config"
	"TradeScout/pkg/dedup"
	"TradeScout/pkg/extractor"
	"TradeScout/pkg/llm"
	"TradeScout/pkg/model"
	"TradeScout/pkg/source"
	"TradeScout/pkg/validator"
)

// MessageStore 消息存储接口
type MessageStore interface {
	SaveBatch(ctx context.Context, messages []model.Message) (int64, error)
	ListUnprocessed(ctx context.Context, limit int) ([]model.Message, error)
	UpdateState(ctx context.Context, id string, state model.ProcessingState) error
}

// ActionStore 交易动作存储接口
// CommitMessage 必须把动作写入和消息状态更新放在同一个原子提交里，
// 并保证同一去重键并发提交时只有一个accepted落库（重复者要被改写为duplicate拒绝）
type ActionStore interface {
	CommitMessage(ctx context.Context, msgID string, state model.ProcessingState, actions []*model.TradingAction) error
}

// RunStats 一轮处理的汇总结果
type RunStats struct {
	Processed     int `json:"processed"`
	Failed        int `json:"failed"`
	StorageErrors int `json:"storage_errors"` // 提交失败的消息数，保持未处理待下轮重跑
	Accepted      int `json:"accepted"`
	Rejected      int `json:"rejected"`
	Duplicates    int `json:"duplicates"`
}

// Processor 消息处理编排器
// 拉取未处理消息，驱动 抽取 → 校验 → 去重 → 落库，跟踪每条消息的处理状态。
// 可以对同一批消息安全重跑：已处理的消息被跳过，动作层由去重键兜底
type Processor struct {
	messages  MessageStore
	actions   ActionStore
	extractor *extractor.Extractor
	validator *validator.Validator

	workers      int
	batchSize    int
	maxRetries   int
	retryBackoff time.Duration
	dedupWindow  time.Duration

	onAccepted func(*model.TradingAction) // accepted动作落库后的回调（发布到NATS等）

	mu    sync.Mutex
	stats *RunStats
}

// New 创建消息处理编排器
func New(
	cfg *config.Config,
	messages MessageStore,
	actions ActionStore,
	ext *extractor.Extractor,
	val *validator.Validator,
) *Processor {
	return &Processor{
		messages:     messages,
		actions:      actions,
		extractor:    ext,
		validator:    val,
		workers:      cfg.Pipeline.Workers,
		batchSize:    cfg.Pipeline.BatchSize,
		maxRetries:   cfg.Pipeline.MaxRetries,
		retryBackoff: cfg.Pipeline.RetryBackoff.Std(),
		dedupWindow:  cfg.Dedup.Window.Std(),
	}
}

// SetActionCallback 设置accepted动作落库后的回调
func (p *Processor) SetActionCallback(callback func(*model.TradingAction)) {
	p.onAccepted = callback
}

// Ingest 从消息源拉取消息并幂等入库
func (p *Processor) Ingest(ctx context.Context, src source.MessageSource) (int64, error) {
	messages, err := src.FetchMessages(ctx)
	if err != nil {
		return 0, fmt.Errorf("拉取消息失败: %w", err)
	}

	saved, err := p.messages.SaveBatch(ctx, messages)
	if err != nil {
		return 0, fmt.Errorf("消息入库失败: %w", err)
	}

	log.Printf("消息入库完成: 拉取 %d 条, 新增 %d 条", len(messages), saved)
	return saved, nil
}

// Run 处理全部未处理消息直到耗尽
// 单条消息的任何失败都被隔离，不会中断整批；取消只在消息之间生效
func (p *Processor) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()

	for {
		messages, err := p.messages.ListUnprocessed(ctx, p.batchSize)
		if err != nil {
			return stats, fmt.Errorf("拉取未处理消息失败: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		before := stats.Processed + stats.Failed
		p.runBatch(ctx, messages)

		if ctx.Err() != nil {
			break
		}
		// 一批下来没有任何消息完成状态推进（全是存储失败或取消），停止避免空转
		if stats.Processed+stats.Failed == before {
			break
		}
	}

	log.Printf("处理完成: 成功 %d, 失败 %d, 存储错误 %d, 接受 %d, 拒绝 %d, 重复 %d",
		stats.Processed, stats.Failed, stats.StorageErrors,
		stats.Accepted, stats.Rejected, stats.Duplicates)
	return stats, ctx.Err()
}

// RunOnSignal 每收到一次信号就处理一轮未处理消息，直到ctx取消
// 处理期间到达的信号坍缩成一次（调用方用容量1的通道投递即可），
// 在线接收模式靠它保证消息入库后很快被处理，不依赖定时任务
func (p *Processor) RunOnSignal(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if _, err := p.Run(ctx); err != nil {
				log.Printf("触发处理中断: %v", err)
			}
		}
	}
}

// runBatch 用有界并发处理一批消息
func (p *Processor) runBatch(ctx context.Context, messages []model.Message) {
	jobs := make(chan model.Message)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				p.processMessage(ctx, msg)
			}
		}()
	}

dispatch:
	for _, msg := range messages {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- msg:
		}
	}
	close(jobs)
	wg.Wait()
}

// processMessage 处理单条消息的完整状态机: unprocessed → processed | failed
func (p *Processor) processMessage(ctx context.Context, msg model.Message) {
	candidates, err := p.extractWithRetry(ctx, &msg)
	if err != nil {
		// 取消时不推进状态，消息保持未处理
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		if errors.Is(err, llm.ErrBackendUnavailable) {
			// 重试耗尽，标记失败
			log.Printf("消息 %s 重试耗尽: %v", msg.ID, err)
			if uerr := p.messages.UpdateState(ctx, msg.ID, model.StateFailed); uerr != nil {
				log.Printf("标记消息失败状态出错: %v", uerr)
				p.addStats(func(s *RunStats) { s.StorageErrors++ })
				return
			}
			p.addStats(func(s *RunStats) { s.Failed++ })
			return
		}

		// 解析失败按零候选处理，消息仍算处理完成
		log.Printf("消息 %s 抽取结果不可解析，按零候选处理: %v", msg.ID, err)
		candidates = nil
	}

	actions := p.buildActions(&msg, candidates)

	if err := p.actions.CommitMessage(ctx, msg.ID, model.StateProcessed, actions); err != nil {
		// 提交失败，消息保持未处理，下轮重跑
		log.Printf("提交消息 %s 处理结果失败: %v", msg.ID, err)
		p.addStats(func(s *RunStats) { s.StorageErrors++ })
		return
	}

	p.addStats(func(s *RunStats) {
		s.Processed++
		for _, action := range actions {
			switch {
			case action.Status == model.StatusAccepted:
				s.Accepted++
			case action.RejectionReason == model.ReasonDuplicate:
				s.Duplicates++
			default:
				s.Rejected++
			}
		}
	})

	if p.onAccepted != nil {
		for _, action := range actions {
			if action.Status == model.StatusAccepted {
				p.onAccepted(action)
			}
		}
	}
}

// extractWithRetry 调用抽取器，后端不可用时指数退避重试
func (p *Processor) extractWithRetry(ctx context.Context, msg *model.Message) ([]model.TradingActionCandidate, error) {
	backoff := p.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		candidates, err := p.extractor.Extract(ctx, msg)
		if err == nil {
			return candidates, nil
		}
		if !errors.Is(err, llm.ErrBackendUnavailable) {
			return nil, err
		}

		lastErr = err
		log.Printf("消息 %s 抽取后端不可用 (第%d次): %v", msg.ID, attempt+1, err)
	}

	return nil, lastErr
}

// buildActions 校验候选并组装待落库的动作记录
// accepted动作在这里算好去重键，最终是否真的accepted由提交时的键抢占决定
func (p *Processor) buildActions(msg *model.Message, candidates []model.TradingActionCandidate) []*model.TradingAction {
	actions := make([]*model.TradingAction, 0, len(candidates))

	for _, c := range candidates {
		result := p.validator.Validate(c)

		action := &model.TradingAction{
			SourceMessageID:     msg.ID,
			Sender:              msg.Sender,
			ActionType:          c.ActionType,
			Symbol:              strings.ToUpper(strings.TrimSpace(c.Symbol)),
			Price:               c.Price,
			Quantity:            c.Quantity,
			RawConfidence:       c.RawConfidence,
			ValidatedConfidence: result.Confidence,
			SignalAt:            msg.SentAt,
		}

		if result.Accepted {
			action.Status = model.StatusAccepted
			action.DedupKey = dedup.Key(msg.Sender, action.Symbol, c.ActionType, msg.SentAt, p.dedupWindow)
		} else {
			action.Status = model.StatusRejected
			action.RejectionReason = result.Reason
		}

		actions = append(actions, action)
	}

	return actions
}

func (p *Processor) addStats(update func(*RunStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	update(p.stats)
}
