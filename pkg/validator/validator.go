// pkg/validator/validator.go
package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"TradeScout/pkg/config"
	"TradeScout/pkg/model"
)

// Validator 交易动作校验器
// 纯确定性逻辑：相同输入永远得到相同结果，不依赖外部调用和隐藏状态
type Validator struct {
	symbolRe        *regexp.Regexp
	minPrice        float64
	maxPrice        float64
	minConfidence   float64
	highConfidence  float64
	confidenceBonus float64
}

// New 根据配置创建校验器
func New(cfg *config.Config) (*Validator, error) {
	re, err := regexp.Compile(cfg.Validator.SymbolPattern)
	if err != nil {
		return nil, fmt.Errorf("编译标的代码正则失败: %w", err)
	}

	return &Validator{
		symbolRe:        re,
		minPrice:        cfg.Validator.MinPrice,
		maxPrice:        cfg.Validator.MaxPrice,
		minConfidence:   cfg.Validator.MinConfidence,
		highConfidence:  cfg.Validator.HighConfidence,
		confidenceBonus: cfg.Validator.ConfidenceBonus,
	}, nil
}

// Validate 校验单个候选动作
// 规则按顺序应用，第一条不通过的规则决定拒绝原因
func (v *Validator) Validate(c model.TradingActionCandidate) model.ValidationResult {
	// 规则1: 动作类型必须在已知词表内
	switch c.ActionType {
	case model.ActionBuy, model.ActionSell, model.ActionHold:
	default:
		return reject(c.RawConfidence, model.ReasonInvalidAction)
	}

	// 规则2: 标的代码先转大写再匹配配置的格式
	symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
	if symbol == "" || !v.symbolRe.MatchString(symbol) {
		return reject(c.RawConfidence, model.ReasonInvalidSymbol)
	}

	// 规则3: 价格存在时必须为合理范围内的正有限数
	if c.Price != nil {
		p := *c.Price
		if math.IsNaN(p) || math.IsInf(p, 0) || p < v.minPrice || p > v.maxPrice {
			return reject(c.RawConfidence, model.ReasonPriceOutOfRange)
		}
	}

	// 规则4: 数量存在时必须为正有限数
	if c.Quantity != nil {
		q := *c.Quantity
		if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
			return reject(c.RawConfidence, model.ReasonQuantityOutOfRange)
		}
	}

	// 规则5: 置信度阈值判定
	if c.RawConfidence < v.minConfidence {
		return reject(c.RawConfidence, model.ReasonLowConfidence)
	}

	confidence := c.RawConfidence
	if confidence >= v.highConfidence {
		// 高置信度加固定奖励，封顶1.0
		confidence = math.Min(confidence+v.confidenceBonus, 1.0)
	}

	return model.ValidationResult{
		Accepted:   true,
		Confidence: confidence,
	}
}

func reject(confidence float64, reason string) model.ValidationResult {
	return model.ValidationResult{
		Accepted:   false,
		Confidence: confidence,
		Reason:     reason,
	}
}
