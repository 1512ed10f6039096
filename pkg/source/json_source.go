// pkg/source/json_source.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"TradeScout/pkg/model"
)

// JSONSource 从导出的JSON文件读取消息
// 文件格式: [{"sender": "...", "send_time": "10/5/2024 12:25 PM", "message": "...", "translated_message": "..."}]
type JSONSource struct {
	path string
}

// NewJSONSource 创建JSON文件消息源
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

// FetchMessages 读取并规范化全部消息
// 个别记录的时间无法解析时跳过该记录并记录日志，不中断整体导入
func (s *JSONSource) FetchMessages(ctx context.Context) ([]model.Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("读取消息文件失败: %w", err)
	}

	var records []exportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析消息文件失败: %w", err)
	}

	messages := make([]model.Message, 0, len(records))
	for i, rec := range records {
		msg, err := toMessage(rec, "json")
		if err != nil {
			log.Printf("跳过第%d条消息: %v", i+1, err)
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
