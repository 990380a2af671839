package apihttp

import (
	"net/http"
	"strconv"
	"strings"

	"bracket/internal/desk"
	"bracket/internal/journal"
	"bracket/internal/logger"

	"github.com/gin-gonic/gin"
)

// Router 暴露下单、查单与日志接口。
type Router struct {
	desk *desk.Desk
}

// NewRouter 构造 api router。
func NewRouter(d *desk.Desk) *Router {
	return &Router{desk: d}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/orders", r.handleCreateOrder)
	group.POST("/orders/buy", r.handleSideOrder("BUY"))
	group.POST("/orders/sell", r.handleSideOrder("SELL"))
	group.GET("/orders/open", r.handleOpenOrders)
	group.POST("/orders/cancel", r.handleCancelOrder)
	group.GET("/position", r.handlePosition)
	group.GET("/logs", r.handleLogs)
	group.GET("/logs/stream", r.handleLogsStream)
	group.GET("/logs/ws", r.handleLogsWS)
	group.GET("/profile", r.handleProfile)
}

// orderRequest 与原始操作面板的表单字段一一对应，0 值字段回退到档位/配置默认。
type orderRequest struct {
	Side       string  `json:"side" form:"side"`
	LimitPrice float64 `json:"limit_price" form:"limit_price"`
	MarginUSD  float64 `json:"margin_usd" form:"margin_usd"`
	TPOffset   float64 `json:"tp_offset" form:"tp_offset"`
	SLOffset   float64 `json:"sl_offset" form:"sl_offset"`
}

func (r *Router) handleCreateOrder(c *gin.Context) {
	if r.desk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
		return
	}
	var req orderRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.Errorf("[api] order bind failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.startOrder(c, req)
}

// handleSideOrder 固定买卖方向的快捷入口。
func (r *Router) handleSideOrder(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.desk == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
			return
		}
		var req orderRequest
		if err := c.ShouldBind(&req); err != nil {
			logger.Errorf("[api] %s order bind failed ip=%s err=%v", strings.ToLower(side), c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Side = side
		r.startOrder(c, req)
	}
}

func (r *Router) startOrder(c *gin.Context, req orderRequest) {
	runID, err := r.desk.StartOrder(desk.OrderIntake{
		Side:       req.Side,
		LimitPrice: req.LimitPrice,
		MarginUSD:  req.MarginUSD,
		TPOffset:   req.TPOffset,
		SLOffset:   req.SLOffset,
	})
	if err != nil {
		logger.Warnf("[api] order rejected ip=%s side=%s err=%v", c.ClientIP(), strings.ToUpper(strings.TrimSpace(req.Side)), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] order accepted ip=%s side=%s run_id=%s", c.ClientIP(), strings.ToUpper(strings.TrimSpace(req.Side)), runID)
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (r *Router) handleOpenOrders(c *gin.Context) {
	if r.desk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
		return
	}
	view, err := r.desk.OpenOrders(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] open orders failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

type cancelRequest struct {
	OrderID int64  `json:"order_id" form:"order_id"`
	Kind    string `json:"kind" form:"kind"`
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	if r.desk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
		return
	}
	var req cancelRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.desk.CancelOrder(c.Request.Context(), req.OrderID, req.Kind); err != nil {
		logger.Warnf("[api] cancel failed ip=%s order_id=%d kind=%s err=%v", c.ClientIP(), req.OrderID, req.Kind, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] cancel ok ip=%s order_id=%d kind=%s", c.ClientIP(), req.OrderID, req.Kind)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handlePosition(c *gin.Context) {
	if r.desk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
		return
	}
	pos, err := r.desk.Position(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] position failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (r *Router) handleLogs(c *gin.Context) {
	j := r.journal()
	if j == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal 未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	// 最新在前。
	c.JSON(http.StatusOK, gin.H{"logs": j.Recent(limit)})
}

func (r *Router) handleProfile(c *gin.Context) {
	if r.desk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "desk 未启用"})
		return
	}
	snap := r.desk.ProfileSnapshot()
	trading := r.desk.Trading()
	c.JSON(http.StatusOK, gin.H{
		"active":   snap.Active,
		"version":  snap.Version,
		"profiles": snap.Profiles,
		"defaults": gin.H{
			"symbol":     trading.Symbol,
			"leverage":   trading.Leverage,
			"margin_usd": trading.MarginUSD,
			"tp_offset":  trading.TPOffset,
			"sl_offset":  trading.SLOffset,
		},
	})
}

func (r *Router) journal() *journal.Journal {
	if r.desk == nil {
		return nil
	}
	return r.desk.Journal()
}
