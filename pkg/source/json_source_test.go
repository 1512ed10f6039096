package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"TradeScout/pkg/model"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写临时文件失败: %v", err)
	}
	return path
}

func TestJSONSourceFetchMessages(t *testing.T) {
	path := writeTempJSON(t, `[
		{"sender": "expert_a", "send_time": "10/5/2024 12:25 PM", "message": "Buy   100 shares of AAPL at $150"},
		{"sender": "expert_b", "send_time": "2024-10-05 14:30:00", "message": "买入 TSLA", "translated_message": "Buy TSLA"},
		{"sender": "expert_c", "send_time": "不是时间", "message": "无法解析时间的消息"}
	]`)

	src := NewJSONSource(path)
	messages, err := src.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("FetchMessages出错: %v", err)
	}

	// 时间无法解析的记录被跳过
	if len(messages) != 2 {
		t.Fatalf("消息数 = %d, 期望 2", len(messages))
	}

	first := messages[0]
	if first.Sender != "expert_a" {
		t.Errorf("Sender = %s, 期望 expert_a", first.Sender)
	}
	if first.SentAt.Year() != 2024 || first.SentAt.Month() != 10 || first.SentAt.Day() != 5 || first.SentAt.Hour() != 12 {
		t.Errorf("SentAt = %v, 期望 2024-10-05 12:25", first.SentAt)
	}
	if first.ProcessingState != model.StateUnprocessed {
		t.Errorf("ProcessingState = %s, 期望 unprocessed", first.ProcessingState)
	}
	// 规范化：小写并折叠空白
	if first.NormalizedText != "buy 100 shares of aapl at $150" {
		t.Errorf("NormalizedText = %q", first.NormalizedText)
	}

	// 有译文时规范化文本来自译文，原文保持不动
	second := messages[1]
	if second.RawText != "买入 TSLA" {
		t.Errorf("RawText = %q, 期望保留原文", second.RawText)
	}
	if second.NormalizedText != "buy tsla" {
		t.Errorf("NormalizedText = %q, 期望译文的规范化结果", second.NormalizedText)
	}
}

// 同一文件导入两次得到相同的消息ID，这是消息层幂等入库的前提
func TestJSONSourceStableIDs(t *testing.T) {
	content := `[{"sender": "expert_a", "send_time": "10/5/2024 12:25 PM", "message": "sell qqq 492 from 483"}]`
	src := NewJSONSource(writeTempJSON(t, content))

	firstLoad, err := src.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("首次FetchMessages出错: %v", err)
	}
	secondLoad, err := src.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("二次FetchMessages出错: %v", err)
	}

	if firstLoad[0].ID == "" {
		t.Fatal("消息ID不应为空")
	}
	if firstLoad[0].ID != secondLoad[0].ID {
		t.Fatalf("两次导入ID不一致: %s vs %s", firstLoad[0].ID, secondLoad[0].ID)
	}
}

func TestJSONSourceMissingFile(t *testing.T) {
	src := NewJSONSource(filepath.Join(t.TempDir(), "不存在.json"))
	if _, err := src.FetchMessages(context.Background()); err == nil {
		t.Fatal("文件不存在时应返回错误")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Buy   AAPL\n\tNOW", "buy aapl now"},
		{"  sell QQQ  ", "sell qqq"},
		{"", ""},
		{"买入 AAPL 180", "买入 aapl 180"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}
