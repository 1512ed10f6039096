// pkg/source/nats_source.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/stan.go"

	"TradeScout/pkg/model"
)

// NATSSource 在线平台适配器
// 平台桥接器（Discord/Telegram抓取端）把消息以统一JSON格式推到NATS Streaming主题，
// 这里订阅并规范化，核心流水线拿到的形状与文件导入完全一致
type NATSSource struct {
	conn     stan.Conn
	subject  string
	sub      stan.Subscription
	mu       sync.Mutex
	buffered []model.Message
}

// NewNATSSource 连接NATS Streaming并创建在线消息源
func NewNATSSource(natsURL, clusterID, clientID, subject string) (*NATSSource, error) {
	conn, err := stan.Connect(
		clusterID,
		clientID,
		stan.NatsURL(natsURL),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	return &NATSSource{
		conn:    conn,
		subject: subject,
	}, nil
}

// Listen 持续接收消息
// 设置了handler时消息只交给handler，不做内部缓冲；
// handler为nil时消息进入缓冲，等待 FetchMessages 取走
func (s *NATSSource) Listen(handler func(model.Message)) error {
	sub, err := s.conn.Subscribe(
		s.subject,
		func(m *stan.Msg) {
			s.deliver(m.Data, handler)
		},
		stan.StartWithLastReceived(),
	)
	if err != nil {
		return fmt.Errorf("订阅聊天消息主题失败: %w", err)
	}

	s.sub = sub
	log.Printf("已订阅聊天消息主题: %s", s.subject)
	return nil
}

// deliver 解析一条原始消息并分发
func (s *NATSSource) deliver(data []byte, handler func(model.Message)) {
	var rec exportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("解析聊天消息失败: %v", err)
		return
	}

	msg, err := toMessage(rec, "live")
	if err != nil {
		log.Printf("规范化聊天消息失败: %v", err)
		return
	}

	if handler != nil {
		handler(msg)
		return
	}

	s.mu.Lock()
	s.buffered = append(s.buffered, msg)
	s.mu.Unlock()
}

// FetchMessages 取出当前缓冲的全部消息
func (s *NATSSource) FetchMessages(ctx context.Context) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.buffered
	s.buffered = nil
	return messages, nil
}

// Close 退订并关闭连接
func (s *NATSSource) Close() error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
