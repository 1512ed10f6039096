package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"TradeScout/pkg/database"
	"TradeScout/pkg/model"
)

// Handlers API处理程序
type Handlers struct {
	messages *database.MessageDB
	actions  *database.ActionDB
}

// NewHandlers 创建新的API处理程序
func NewHandlers(messages *database.MessageDB, actions *database.ActionDB) *Handlers {
	return &Handlers{
		messages: messages,
		actions:  actions,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// GetActions 查询交易动作处理程序
// 支持按标的、动作类型、状态、最低置信度和时间范围过滤
func (h *Handlers) GetActions(c *gin.Context) {
	filter := database.ActionFilter{
		Symbol:     c.Query("symbol"),
		ActionType: model.ActionType(c.Query("action")),
		Status:     model.ActionStatus(c.Query("status")),
	}

	if v := c.Query("min_confidence"); v != "" {
		conf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "min_confidence参数无效: " + err.Error(),
			})
			return
		}
		filter.MinConfidence = conf
	}

	if v := c.Query("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "start参数无效，需要RFC3339格式: " + err.Error(),
			})
			return
		}
		filter.Start = start
	}

	if v := c.Query("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "end参数无效，需要RFC3339格式: " + err.Error(),
			})
			return
		}
		filter.End = end
	}

	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	actions, err := h.actions.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "查询交易动作失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": actions,
	})
}

// GetActionStats 交易动作统计处理程序
func (h *Handlers) GetActionStats(c *gin.Context) {
	stats, err := h.actions.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "统计交易动作失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// GetMessages 查询消息处理程序
func (h *Handlers) GetMessages(c *gin.Context) {
	state := model.ProcessingState(c.Query("state"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	messages, err := h.messages.GetRecent(c.Request.Context(), state, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "查询消息失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": messages,
	})
}

// GetMessageStats 消息状态统计处理程序
func (h *Handlers) GetMessageStats(c *gin.Context) {
	counts, err := h.messages.CountByState(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "统计消息状态失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": counts,
	})
}
