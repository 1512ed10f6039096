package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrBackendUnavailable 后端暂时不可用（网络、超时、限流），调用方可重试
var ErrBackendUnavailable = errors.New("大模型服务不可用")

// Completer 文本补全能力，抽取器依赖该接口而非具体客户端
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client 大模型客户端（OpenAI兼容的chat completions接口）
type Client struct {
	apiURL    string
	apiKey    string
	modelName string
	client    *http.Client
}

// Message 表示对话中的一条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 表示聊天请求
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse 表示聊天响应
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient 创建新的大模型客户端
func NewClient(apiURL, apiKey, modelName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL:    apiURL,
		apiKey:    apiKey,
		modelName: modelName,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete 发送补全请求并返回文本结果
// 抽取任务用低温度保证输出稳定
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// 构建请求
	reqBody := ChatRequest{
		Model: c.modelName,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	// 创建HTTP请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	// 设置请求头
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	// 发送请求，网络层失败视为后端不可用
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	// 读取响应
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: 读取响应失败: %v", ErrBackendUnavailable, err)
	}

	// 限流和服务端错误同样可重试
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: 状态码 %d: %s", ErrBackendUnavailable, resp.StatusCode, string(body))
	}

	// 其余非200为永久性错误
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API返回错误: 状态码 %d: %s", resp.StatusCode, string(body))
	}

	// 解析响应
	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	// 检查是否有响应内容
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("API返回空响应")
	}

	// 返回响应内容
	return chatResp.Choices[0].Message.Content, nil
}
