package extractor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"TradeScout/pkg/llm"
	"TradeScout/pkg/model"
)

// fakeCompleter 固定输出的假后端
type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func testMessage() *model.Message {
	return &model.Message{
		ID:             "msg-1",
		Sender:         "A",
		SentAt:         time.Date(2024, 10, 5, 12, 25, 0, 0, time.UTC),
		RawText:        "买入 AAPL 180",
		NormalizedText: "买入 aapl 180",
	}
}

func TestExtractValidArray(t *testing.T) {
	backend := &fakeCompleter{
		response: `[{"action_type": "buy", "symbol": "AAPL", "price": 180.0, "quantity": null, "confidence": 0.9}]`,
	}
	e := New(backend)

	candidates, err := e.Extract(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Extract出错: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("期望1个候选, 实际 %d", len(candidates))
	}

	c := candidates[0]
	if c.ActionType != model.ActionBuy {
		t.Errorf("ActionType = %s, 期望 buy", c.ActionType)
	}
	if c.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, 期望 AAPL", c.Symbol)
	}
	if c.Price == nil || *c.Price != 180.0 {
		t.Errorf("Price = %v, 期望 180", c.Price)
	}
	if c.Quantity != nil {
		t.Errorf("Quantity = %v, 期望 nil", c.Quantity)
	}
	if c.RawConfidence != 0.9 {
		t.Errorf("RawConfidence = %v, 期望 0.9", c.RawConfidence)
	}
	if c.SourceMessageID != "msg-1" {
		t.Errorf("SourceMessageID = %s, 期望 msg-1", c.SourceMessageID)
	}
}

func TestExtractToleratesWrapping(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{
			name: "markdown代码块包裹",
			response: "```json\n" +
				`[{"action_type": "sell", "symbol": "QQQ", "price": 492.0, "confidence": 0.9}]` +
				"\n```",
			want: 1,
		},
		{
			name:     "actions对象包装",
			response: `{"actions": [{"action_type": "buy", "symbol": "TSLA", "confidence": 0.8}]}`,
			want:     1,
		},
		{
			name:     "单对象返回",
			response: `{"action_type": "buy", "symbol": "TSLA", "confidence": 0.8}`,
			want:     1,
		},
		{
			name:     "空数组",
			response: `[]`,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&fakeCompleter{response: tt.response})
			candidates, err := e.Extract(context.Background(), testMessage())
			if err != nil {
				t.Fatalf("Extract出错: %v", err)
			}
			if len(candidates) != tt.want {
				t.Fatalf("候选数 = %d, 期望 %d", len(candidates), tt.want)
			}
		})
	}
}

func TestExtractMalformedResponse(t *testing.T) {
	e := New(&fakeCompleter{response: "抱歉，我看不出这条消息里有什么交易动作。"})

	_, err := e.Extract(context.Background(), testMessage())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("期望 ErrExtractionFailed, 实际 %v", err)
	}
}

func TestExtractBackendUnavailablePassthrough(t *testing.T) {
	e := New(&fakeCompleter{err: fmt.Errorf("%w: 连接超时", llm.ErrBackendUnavailable)})

	_, err := e.Extract(context.Background(), testMessage())
	if !errors.Is(err, llm.ErrBackendUnavailable) {
		t.Fatalf("期望透传 ErrBackendUnavailable, 实际 %v", err)
	}
	if errors.Is(err, ErrExtractionFailed) {
		t.Fatal("后端不可用不应被归为解析失败")
	}
}

// 取消错误原样上抛，不能被归为解析失败（否则消息会被错误地标记为已处理）
func TestExtractCanceledPassthrough(t *testing.T) {
	e := New(&fakeCompleter{err: context.Canceled})

	_, err := e.Extract(context.Background(), testMessage())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望透传 context.Canceled, 实际 %v", err)
	}
	if errors.Is(err, ErrExtractionFailed) {
		t.Fatal("取消不应被归为解析失败")
	}
}

func TestExtractFieldNormalization(t *testing.T) {
	e := New(&fakeCompleter{
		response: `[
			{"action_type": "PURCHASE", "symbol": " tsla ", "confidence": 1.5},
			{"action_type": "buy", "symbol": "", "confidence": 0.9},
			{"action_type": "sell", "symbol": "QQQ"}
		]`,
	})

	candidates, err := e.Extract(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Extract出错: %v", err)
	}
	// 空标的被丢弃
	if len(candidates) != 2 {
		t.Fatalf("候选数 = %d, 期望 2", len(candidates))
	}

	// 未知动作词映射为unknown，标的去空白转大写，置信度截断到[0,1]
	if candidates[0].ActionType != model.ActionUnknown {
		t.Errorf("ActionType = %s, 期望 unknown", candidates[0].ActionType)
	}
	if candidates[0].Symbol != "TSLA" {
		t.Errorf("Symbol = %q, 期望 TSLA", candidates[0].Symbol)
	}
	if candidates[0].RawConfidence != 1.0 {
		t.Errorf("RawConfidence = %v, 期望截断到 1.0", candidates[0].RawConfidence)
	}

	// 置信度缺省为0.5
	if candidates[1].RawConfidence != 0.5 {
		t.Errorf("缺省RawConfidence = %v, 期望 0.5", candidates[1].RawConfidence)
	}
}
