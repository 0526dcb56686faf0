package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/notifier"
	"sampmon/internal/state"
	"sampmon/internal/storage"
)

// StatusSource 最近状态（*state.Store 实现该接口）
type StatusSource interface {
	Get(name string) (*storage.Snapshot, bool)
	Report() state.StatusReport
}

// Handler API 处理器
type Handler struct {
	status   StatusSource
	history  storage.Storage
	notifier notifier.Notifier
	limiter  *ClientLimiter

	cfgMu  sync.RWMutex
	config *config.AppConfig
}

// NewHandler 创建处理器；history 为 nil 时事件查询返回空列表
func NewHandler(status StatusSource, history storage.Storage, n notifier.Notifier, cfg *config.AppConfig) *Handler {
	if history == nil {
		history = storage.NopStorage{}
	}
	if n == nil {
		n = notifier.Nop{}
	}
	return &Handler{
		status:   status,
		history:  history,
		notifier: n,
		limiter:  NewClientLimiter(6, 3),
		config:   cfg,
	}
}

// UpdateConfig 更新配置（热更新时调用）
func (h *Handler) UpdateConfig(cfg *config.AppConfig) {
	h.cfgMu.Lock()
	h.config = cfg
	h.cfgMu.Unlock()
}

func (h *Handler) currentConfig() *config.AppConfig {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.config
}

// GetStatus 返回全部服务器的状态报告
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.status.Report())
}

// GetServerStatus 返回单个服务器的最近快照
// GET /api/status/:name
func (h *Handler) GetServerStatus(c *gin.Context) {
	snap, ok := h.lookup(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, snap)
}

// lookup 查找快照，未找到时写入 404 响应
func (h *Handler) lookup(c *gin.Context) (*storage.Snapshot, bool) {
	name := c.Param("name")
	if snap, ok := h.status.Get(name); ok {
		return snap, true
	}

	msg := "服务器不存在"
	if h.currentConfig().FindServer(name) != nil {
		msg = "服务器尚未完成首次探测"
	}
	c.JSON(http.StatusNotFound, gin.H{"error": msg, "server": name})
	return nil, false
}

// EventsResponse 告警列表响应
type EventsResponse struct {
	Events []*storage.AlertEvent `json:"events"`
	Meta   EventsMeta            `json:"meta"`
}

// EventsMeta 告警列表元数据
type EventsMeta struct {
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// GetEvents 查询告警历史（ID 降序）
// GET /api/events?server=xxx&kind=went_offline,high_load&since_id=0&limit=20
// limit 默认 20，最大 100
func (h *Handler) GetEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	sinceID, _ := strconv.ParseInt(c.DefaultQuery("since_id", "0"), 10, 64)

	filters := &storage.AlertFilters{
		Server:  strings.TrimSpace(c.Query("server")),
		SinceID: sinceID,
	}
	if kinds := c.Query("kind"); kinds != "" {
		for _, k := range strings.Split(kinds, ",") {
			kind := storage.AlertKind(strings.TrimSpace(k))
			if !kind.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "未知的告警类型: " + string(kind)})
				return
			}
			filters.Kinds = append(filters.Kinds, kind)
		}
	}

	events, err := h.history.WithContext(c.Request.Context()).GetAlerts(filters, limit+1)
	if err != nil {
		logger.FromContext(c.Request.Context(), "api").Error("查询告警失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询告警失败"})
		return
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	if events == nil {
		events = []*storage.AlertEvent{}
	}

	c.JSON(http.StatusOK, EventsResponse{
		Events: events,
		Meta:   EventsMeta{Count: len(events), HasMore: hasMore},
	})
}

// NotifyStatus 将服务器当前状态推送到 Discord
// POST /api/status/:name/notify
func (h *Handler) NotifyStatus(c *gin.Context) {
	if !h.limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
		return
	}

	snap, ok := h.lookup(c)
	if !ok {
		return
	}

	ev := notifier.StatusEmbed(snap)
	if err := h.notifier.Notify(c.Request.Context(), ev); err != nil {
		logger.FromContext(c.Request.Context(), "api").Warn("推送状态失败", "server", snap.Name, "error", err)

		var ne *notifier.Error
		resp := gin.H{"error": "推送状态失败", "code": string(notifier.CodeOf(err))}
		if errors.As(err, &ne) && ne.StatusCode != 0 {
			resp["upstream_status"] = ne.StatusCode
		}
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sent": true, "server": snap.Name})
}
