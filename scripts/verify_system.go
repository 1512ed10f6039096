package main

import (
	"context"
	"log"
	"os"
	"time"

	"TradeScout/pkg/config"
	"TradeScout/pkg/database"
	"TradeScout/pkg/dedup"
	"TradeScout/pkg/extractor"
	"TradeScout/pkg/llm"
	"TradeScout/pkg/messaging"
	"TradeScout/pkg/model"
	"TradeScout/pkg/validator"
)

func main() {
	log.Println("开始系统验证...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/dev/app.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 测试校验器
	testValidator(cfg)

	// 测试去重键
	testDedupKey(cfg)

	// 测试数据库（如果可用）
	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Printf("连接数据库失败: %v，跳过数据库相关测试\n", err)
	} else {
		testDatabase(db)
	}

	// 测试NATS（如果可用）
	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL)
	if err != nil {
		log.Printf("连接NATS失败: %v，跳过NATS相关测试\n", err)
	} else {
		defer natsClient.Close()
		testNATS(natsClient)
	}

	// 测试大模型抽取（如果配置了密钥）
	if cfg.LLM.APIKey != "" {
		testExtraction(cfg)
	} else {
		log.Println("未配置LLM_API_KEY，跳过抽取测试")
	}

	log.Println("系统验证完成")
}

// 测试校验器
func testValidator(cfg *config.Config) {
	log.Println("测试校验器...")

	val, err := validator.New(cfg)
	if err != nil {
		log.Printf("创建校验器失败: %v\n", err)
		return
	}

	price := 180.0
	candidate := model.TradingActionCandidate{
		ActionType:    model.ActionBuy,
		Symbol:        "AAPL",
		Price:         &price,
		RawConfidence: 0.9,
	}

	result := val.Validate(candidate)
	log.Printf("校验结果: accepted=%v, confidence=%.2f, reason=%s\n",
		result.Accepted, result.Confidence, result.Reason)
}

// 测试去重键
func testDedupKey(cfg *config.Config) {
	log.Println("测试去重键...")

	now := time.Now()
	key1 := dedup.Key("expert_a", "AAPL", model.ActionBuy, now, cfg.Dedup.Window.Std())
	key2 := dedup.Key("expert_a", "AAPL", model.ActionBuy, now.Add(5*time.Minute), cfg.Dedup.Window.Std())

	if key1 == key2 {
		log.Println("同窗口重复喊单落入同一去重键")
	} else {
		log.Println("警告: 同窗口键不一致，检查时间桶配置")
	}
}

// 测试数据库
func testDatabase(db *database.DB) {
	log.Println("测试数据库...")

	ctx := context.Background()

	counts, err := db.Messages().CountByState(ctx)
	if err != nil {
		log.Printf("统计消息状态失败: %v\n", err)
		return
	}
	log.Printf("消息状态分布: %v\n", counts)

	stats, err := db.Actions().Stats(ctx)
	if err != nil {
		log.Printf("统计交易动作失败: %v\n", err)
		return
	}
	log.Printf("动作总数: %d, 按状态: %v\n", stats.Total, stats.ByStatus)
}

// 测试NATS
func testNATS(client *messaging.NATSClient) {
	log.Println("测试NATS消息队列...")

	price := 180.0
	action := &model.TradingAction{
		ID:                  "verify-action",
		Sender:              "expert_a",
		ActionType:          model.ActionBuy,
		Symbol:              "AAPL",
		Price:               &price,
		ValidatedConfidence: 0.95,
		Status:              model.StatusAccepted,
		SignalAt:            time.Now(),
	}

	if err := client.PublishAction(action); err != nil {
		log.Printf("发布动作失败: %v\n", err)
	} else {
		log.Println("发布动作成功")
	}

	received := false
	err := client.Subscribe("ACTIONS_STREAM", "verify-consumer", messaging.SubjectActionAccepted, func(data []byte) error {
		log.Printf("收到动作消息: %d 字节\n", len(data))
		received = true
		return nil
	})
	if err != nil {
		log.Printf("订阅动作失败: %v\n", err)
		return
	}

	time.Sleep(1 * time.Second)
	client.PublishAction(action)
	time.Sleep(2 * time.Second)

	if received {
		log.Println("成功接收到动作消息")
	} else {
		log.Println("未接收到动作消息")
	}
}

// 测试大模型抽取
func testExtraction(cfg *config.Config) {
	log.Println("测试大模型抽取...")

	client := llm.NewClient(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout.Std())
	ext := extractor.New(client)

	msg := model.Message{
		ID:      "verify-msg",
		Sender:  "expert_a",
		SentAt:  time.Now(),
		RawText: "买入 AAPL 180",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	candidates, err := ext.Extract(ctx, &msg)
	if err != nil {
		log.Printf("抽取失败: %v\n", err)
		return
	}

	log.Printf("抽取到%d条候选\n", len(candidates))
	for _, c := range candidates {
		log.Printf("候选: %s %s, 置信度: %.2f\n", c.ActionType, c.Symbol, c.RawConfidence)
	}
}
