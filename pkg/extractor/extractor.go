// pkg/extractor/extractor.go
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"TradeScout/pkg/llm"
	"TradeScout/pkg/model"
)

// ErrExtractionFailed 响应无法解析成约定格式，调用方按零候选处理
var ErrExtractionFailed = errors.New("解析抽取结果失败")

const systemPrompt = "你是交易动作抽取系统，只返回合法的JSON，不要输出任何其他内容。"

// Extractor 基于大模型的交易动作抽取器
type Extractor struct {
	backend llm.Completer
}

// New 创建抽取器，后端通过接口注入，便于测试时替换为固定输出
func New(backend llm.Completer) *Extractor {
	return &Extractor{backend: backend}
}

// rawCandidate 大模型按约定输出的单个动作
type rawCandidate struct {
	ActionType string   `json:"action_type"`
	Symbol     string   `json:"symbol"`
	Price      *float64 `json:"price"`
	Quantity   *float64 `json:"quantity"`
	Confidence *float64 `json:"confidence"`
}

// envelope 兼容模型把数组包进对象返回的情况
type envelope struct {
	Actions []rawCandidate `json:"actions"`
}

// Extract 从一条消息中抽取候选交易动作，大多数闲聊消息返回空列表
// 后端不可用返回 llm.ErrBackendUnavailable（可重试）；
// 响应不合约定返回 ErrExtractionFailed（按零候选处理，不中断流水线）
func (e *Extractor) Extract(ctx context.Context, msg *model.Message) ([]model.TradingActionCandidate, error) {
	resp, err := e.backend.Complete(ctx, systemPrompt, buildPrompt(msg.ExtractionText()))
	if err != nil {
		if errors.Is(err, llm.ErrBackendUnavailable) {
			return nil, err
		}
		// 取消原样上抛，调用方据此不推进消息状态
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	raws, err := parseResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	candidates := make([]model.TradingActionCandidate, 0, len(raws))
	for _, raw := range raws {
		symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
		if symbol == "" {
			continue // 没有标的的动作无意义，直接丢弃
		}

		confidence := 0.5
		if raw.Confidence != nil {
			confidence = clamp01(*raw.Confidence)
		}

		candidates = append(candidates, model.TradingActionCandidate{
			ActionType:      model.ParseActionType(strings.ToLower(strings.TrimSpace(raw.ActionType))),
			Symbol:          symbol,
			Price:           raw.Price,
			Quantity:        raw.Quantity,
			RawConfidence:   confidence,
			SourceMessageID: msg.ID,
		})
	}

	return candidates, nil
}

// buildPrompt 构建抽取提示词，内嵌固定的输出格式保证响应可机器解析
func buildPrompt(text string) string {
	return fmt.Sprintf(`从下面的消息中抽取所有交易动作（买入/卖出/持有）。消息可能是中文、英文或口语化表达。

消息:
%s

返回一个JSON数组，每个动作包含:
- action_type: "buy"、"sell"、"hold" 或 "unknown"
- symbol: 标的代码（如 "AAPL"、"TSLA"、"QQQ"）
- price: 价格（数值，可为null）
- quantity: 数量（数值，可为null）
- confidence: 置信度 0.0-1.0

没有交易动作时返回空数组 []。

示例:
- "Buy 100 shares of AAPL at $150" -> [{"action_type": "buy", "symbol": "AAPL", "price": 150.0, "quantity": 100, "confidence": 0.95}]
- "sell qqq 492 from 483" -> [{"action_type": "sell", "symbol": "QQQ", "price": 492.0, "quantity": null, "confidence": 0.9}]
- "买入 AAPL 180" -> [{"action_type": "buy", "symbol": "AAPL", "price": 180.0, "quantity": null, "confidence": 0.9}]
- "I'm thinking about buying TSLA" -> [{"action_type": "unknown", "symbol": "TSLA", "price": null, "quantity": null, "confidence": 0.3}]

只返回JSON，不要输出其他文字。`, text)
}

// parseResponse 把模型响应解析为候选列表
// 容忍markdown代码块包裹、单对象返回和 {"actions": [...]} 包装
func parseResponse(resp string) ([]rawCandidate, error) {
	text := stripCodeFence(strings.TrimSpace(resp))
	if text == "" {
		return nil, fmt.Errorf("响应为空")
	}

	// 标准形式：JSON数组
	var raws []rawCandidate
	if err := json.Unmarshal([]byte(text), &raws); err == nil {
		return raws, nil
	}

	// 对象形式：{"actions": [...]} 或单个动作对象
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err == nil && env.Actions != nil {
		return env.Actions, nil
	}

	var single rawCandidate
	if err := json.Unmarshal([]byte(text), &single); err == nil && (single.ActionType != "" || single.Symbol != "") {
		return []rawCandidate{single}, nil
	}

	return nil, fmt.Errorf("响应不是合法的JSON动作列表: %.120s", text)
}

// stripCodeFence 去掉 ```json ... ``` 代码块包装
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	// 去掉首行的 ``` 标记，若末行也是 ``` 一并去掉
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
