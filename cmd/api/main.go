package main

import (
	"log"
	"os"

	"TradeScout/pkg/api"
	"TradeScout/pkg/config"
	"TradeScout/pkg/database"
)

func main() {
	log.Println("启动API服务...")

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

	// 创建服务器和处理程序
	server := api.NewServer(cfg.API.Port)
	handlers := api.NewHandlers(db.Messages(), db.Actions())
	server.SetupRoutes(handlers)

	// 启动服务器（阻塞到收到中断信号）
	server.Start()
}
