// pkg/source/source.go
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TradeScout/pkg/model"
)

// MessageSource 消息来源统一接口
// 核心流水线只依赖这个形状，不关心消息来自JSON导出还是在线平台
type MessageSource interface {
	FetchMessages(ctx context.Context) ([]model.Message, error)
}

// exportRecord 导出文件和桥接器推送的统一消息格式
type exportRecord struct {
	Sender            string `json:"sender"`
	SendTime          string `json:"send_time"`
	Message           string `json:"message"`
	TranslatedMessage string `json:"translated_message,omitempty"` // 翻译脚本预先生成的译文
	Channel           string `json:"channel,omitempty"`
	MessageID         string `json:"message_id,omitempty"`
	Platform          string `json:"platform,omitempty"`
}

// 导出文件里常见的时间格式，按顺序尝试
var sendTimeLayouts = []string{
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// parseSendTime 解析发送时间字符串，保留来源时区
func parseSendTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sendTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的时间格式: %q", s)
}

// NormalizeText 规范化文本：小写并折叠空白，仅供抽取使用
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// toMessage 把一条导出记录转换为规范化消息
// 平台相关字段在这里消化掉，不向下游泄漏
func toMessage(rec exportRecord, defaultPlatform string) (model.Message, error) {
	sentAt, err := parseSendTime(rec.SendTime)
	if err != nil {
		return model.Message{}, err
	}

	platform := rec.Platform
	if platform == "" {
		platform = defaultPlatform
	}

	// 译文存在时优先用译文做抽取文本
	normalized := rec.Message
	if rec.TranslatedMessage != "" {
		normalized = rec.TranslatedMessage
	}

	return model.Message{
		ID:              model.NewMessageID(rec.Sender, sentAt, rec.Message),
		Sender:          rec.Sender,
		Channel:         rec.Channel,
		Platform:        platform,
		SentAt:          sentAt,
		RawText:         rec.Message,
		NormalizedText:  NormalizeText(normalized),
		ProcessingState: model.StateUnprocessed,
	}, nil
}
