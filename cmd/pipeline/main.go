package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"TradeScout/pkg/config"
	"TradeScout/pkg/database"
	"TradeScout/pkg/extractor"
	"TradeScout/pkg/llm"
	"TradeScout/pkg/messaging"
	"TradeScout/pkg/model"
	"TradeScout/pkg/processor"
	"TradeScout/pkg/source"
	"TradeScout/pkg/validator"
)

func main() {
	var (
		importFile = flag.String("file", "", "导入JSON消息文件后处理一轮")
		listen     = flag.Bool("listen", false, "订阅NATS聊天消息主题持续接收在线消息")
	)
	flag.Parse()

	log.Println("启动消息处理流水线...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 连接数据库
	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("连接数据库失败: %v\n", err)
	}
	defer db.Close()

	// 组装流水线
	llmClient := llm.NewClient(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout.Std())
	ext := extractor.New(llmClient)

	val, err := validator.New(cfg)
	if err != nil {
		log.Fatalf("创建校验器失败: %v\n", err)
	}

	proc := processor.New(cfg, db.Messages(), db.Actions(), ext, val)

	// 连接NATS，accepted动作发布给下游监控
	var natsClient *messaging.NATSClient
	if cfg.NATS.URL != "" {
		natsClient, err = messaging.NewNATSClient(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("连接NATS失败: %v\n", err)
		}
		defer natsClient.Close()

		proc.SetActionCallback(func(action *model.TradingAction) {
			if err := natsClient.PublishAction(action); err != nil {
				log.Printf("发布交易动作失败: %v\n", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 文件导入模式：入库后处理一轮
	if *importFile != "" {
		src := source.NewJSONSource(*importFile)
		if _, err := proc.Ingest(ctx, src); err != nil {
			log.Fatalf("导入消息文件失败: %v\n", err)
		}
		if _, err := proc.Run(ctx); err != nil {
			log.Printf("处理中断: %v\n", err)
		}
	}

	// 在线模式：订阅聊天消息主题，消息到达即入库并触发处理
	var liveSource *source.NATSSource
	if *listen {
		liveSource, err = source.NewNATSSource(
			cfg.NATS.URL,
			cfg.NATS.ClusterID,
			cfg.NATS.ClientID+"-source",
			cfg.NATS.ChatSubject,
		)
		if err != nil {
			log.Fatalf("连接在线消息源失败: %v\n", err)
		}
		defer liveSource.Close()

		// 容量1的通道：处理期间到达的消息坍缩成一次触发
		trigger := make(chan struct{}, 1)
		go proc.RunOnSignal(ctx, trigger)

		err = liveSource.Listen(func(msg model.Message) {
			if _, err := db.Messages().SaveBatch(ctx, []model.Message{msg}); err != nil {
				log.Printf("在线消息入库失败: %v\n", err)
				return
			}
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Fatalf("订阅在线消息失败: %v\n", err)
		}
	}

	// 定时批处理
	var c *cron.Cron
	if cfg.Pipeline.CronSpec != "" {
		c = cron.New()
		_, err := c.AddFunc(cfg.Pipeline.CronSpec, func() {
			if _, err := proc.Run(ctx); err != nil {
				log.Printf("定时处理中断: %v\n", err)
			}
		})
		if err != nil {
			log.Fatalf("注册定时任务失败: %v\n", err)
		}
		c.Start()
		log.Printf("定时处理已启用: %s\n", cfg.Pipeline.CronSpec)
	}

	// 没有常驻任务时处理完直接退出
	if !*listen && c == nil {
		return
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("正在关闭消息处理流水线...")
	cancel()
	if c != nil {
		c.Stop()
	}
}
