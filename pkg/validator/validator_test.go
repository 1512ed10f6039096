package validator

import (
	"math"
	"testing"

	"TradeScout/pkg/config"
	"TradeScout/pkg/model"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(config.Default())
	if err != nil {
		t.Fatalf("创建校验器失败: %v", err)
	}
	return v
}

func fp(v float64) *float64 {
	return &v
}

func TestValidateRules(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name           string
		candidate      model.TradingActionCandidate
		wantAccepted   bool
		wantReason     string
		wantConfidence float64
	}{
		{
			name: "普通买入动作接受且置信度不变",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", Price: fp(180), RawConfidence: 0.7,
			},
			wantAccepted:   true,
			wantConfidence: 0.7,
		},
		{
			name: "高置信度获得固定奖励",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", Price: fp(180), RawConfidence: 0.9,
			},
			wantAccepted:   true,
			wantConfidence: 0.95,
		},
		{
			name: "奖励后封顶1.0",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionSell, Symbol: "QQQ", RawConfidence: 0.98,
			},
			wantAccepted:   true,
			wantConfidence: 1.0,
		},
		{
			name: "零置信度必然低置信度拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", RawConfidence: 0.0,
			},
			wantAccepted: false,
			wantReason:   model.ReasonLowConfidence,
		},
		{
			name: "阈值之下拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", RawConfidence: 0.49,
			},
			wantAccepted: false,
			wantReason:   model.ReasonLowConfidence,
		},
		{
			name: "unknown动作拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionUnknown, Symbol: "TSLA", RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonInvalidAction,
		},
		{
			name: "标的为空拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "", RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonInvalidSymbol,
		},
		{
			name: "标的过长拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "TOOLONGSYMBOL", RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonInvalidSymbol,
		},
		{
			name: "小写标的先转大写再匹配",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "aapl", RawConfidence: 0.7,
			},
			wantAccepted:   true,
			wantConfidence: 0.7,
		},
		{
			name: "负价格拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", Price: fp(-5), RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonPriceOutOfRange,
		},
		{
			name: "无穷价格拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", Price: fp(math.Inf(1)), RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonPriceOutOfRange,
		},
		{
			name: "超出上限的价格拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionBuy, Symbol: "AAPL", Price: fp(2000000), RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonPriceOutOfRange,
		},
		{
			name: "负数量拒绝",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionSell, Symbol: "AAPL", Quantity: fp(-100), RawConfidence: 0.9,
			},
			wantAccepted: false,
			wantReason:   model.ReasonQuantityOutOfRange,
		},
		{
			name: "价格数量缺省时仅看动作标的置信度",
			candidate: model.TradingActionCandidate{
				ActionType: model.ActionHold, Symbol: "TSLA", RawConfidence: 0.6,
			},
			wantAccepted:   true,
			wantConfidence: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.candidate)
			if result.Accepted != tt.wantAccepted {
				t.Fatalf("Accepted = %v, 期望 %v (原因: %s)", result.Accepted, tt.wantAccepted, result.Reason)
			}
			if !tt.wantAccepted && result.Reason != tt.wantReason {
				t.Fatalf("Reason = %q, 期望 %q", result.Reason, tt.wantReason)
			}
			if tt.wantAccepted && math.Abs(result.Confidence-tt.wantConfidence) > 1e-9 {
				t.Fatalf("Confidence = %v, 期望 %v", result.Confidence, tt.wantConfidence)
			}
		})
	}
}

// 校验器是纯函数：相同输入必须永远得到相同结果
func TestValidateDeterminism(t *testing.T) {
	v := newTestValidator(t)

	candidate := model.TradingActionCandidate{
		ActionType:    model.ActionBuy,
		Symbol:        "AAPL",
		Price:         fp(180),
		Quantity:      fp(100),
		RawConfidence: 0.9,
	}

	first := v.Validate(candidate)
	for i := 0; i < 100; i++ {
		got := v.Validate(candidate)
		if got != first {
			t.Fatalf("第%d次结果 %+v 与首次 %+v 不一致", i+1, got, first)
		}
	}
}
