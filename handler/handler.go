package handler

import (
	"errors"
	"net/http"
	"road-editor/algo"
	"road-editor/config"
	"road-editor/db"
	"road-editor/editor"
	"road-editor/model"
	"sync"

	"github.com/gin-gonic/gin"
)

// Handler HTTP 接口依赖的全部状态
type Handler struct {
	Users     db.UserStore
	Documents db.DocumentStore
	Session   *editor.Session
	Build     algo.BuildOptions
	Origin    model.Origin

	jwtSecret []byte

	mu       sync.Mutex
	features map[string]*roadFeatures // 文档 ID -> 已构建的要素
}

// New 创建 Handler
func New(cfg config.Config, users db.UserStore, docs db.DocumentStore, session *editor.Session) *Handler {
	return &Handler{
		Users:     users,
		Documents: docs,
		Session:   session,
		Build:     cfg.BuildOptions(),
		Origin:    cfg.Origin,
		jwtSecret: []byte(cfg.JWTSecret),
		features:  make(map[string]*roadFeatures),
	}
}

// SetupRoutes 配置路由. authRequired 为 true 时编辑接口需要登录.
func SetupRoutes(r *gin.Engine, h *Handler, authRequired bool) {
	r.Use(CORS())

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
			"status":  "ok",
		})
	})

	api := r.Group("/api")
	{
		// 公开接口 (无需认证)
		api.POST("/login", h.Login)
		api.POST("/register", h.Register)

		api.GET("/roads", h.ListRoads)
		api.GET("/roads/:id/features", h.GetRoadFeatures)

		api.GET("/editor/features", h.GetEditorFeatures)
		api.GET("/editor/axes", h.ListAxes)
		api.GET("/editor/nodes", h.GetNodes)
		api.POST("/editor/route", h.FindRoute)
		api.GET("/editor/export", h.Export)
	}

	mutating := api.Group("/")
	if authRequired {
		mutating.Use(h.AuthMiddleware())
	}
	{
		mutating.POST("/roads", h.UploadRoad)

		mutating.POST("/editor/axes", h.CreateAxis)
		mutating.DELETE("/editor/axes/:id", h.DeleteAxis)
		mutating.POST("/editor/axes/:id/vertices", h.InsertVertex)
		mutating.PUT("/editor/axes/:id/vertices/:idx", h.MoveVertex)
		mutating.DELETE("/editor/axes/:id/vertices/:idx", h.DeleteVertex)
		mutating.PUT("/editor/axes/:id/rounding/:idx", h.SetRounding)
		mutating.POST("/editor/view", h.SetView)
		mutating.POST("/editor/reset", h.Reset)
		mutating.POST("/editor/import", h.Import)
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// errorStatus 错误对应的 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, editor.ErrAxisNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrDuplicateAxis), errors.Is(err, db.ErrAlreadyExists):
		return http.StatusConflict
	case editor.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}
