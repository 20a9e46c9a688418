package main

import (
	"context"
	"fmt"
	"log"
	"road-editor/config"
	"road-editor/db"
	"road-editor/editor"
	"road-editor/handler"
	"road-editor/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	fmt.Println("=== Road Editor - 道路网络编辑服务 ===")

	// 1. 读取配置 (环境变量)
	cfg := config.Load()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	utils.SetLogger(log.Printf)
	gin.SetMode(cfg.GinMode)

	// 2. 初始化存储
	// STORAGE=postgres 时连接 PostgreSQL 并自动迁移表结构, memory 时所有数据只保存在进程内
	var (
		users     db.UserStore
		documents db.DocumentStore
		axes      editor.AxisStore
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		if err := db.InitDB(cfg); err != nil {
			log.Fatalf("数据库初始化失败: %v", err)
		}
		repos := db.NewRepos(db.DB)
		users, documents, axes = repos.Users, repos.Documents, repos.Axes
	default:
		log.Println("使用内存存储, 重启后数据会丢失")
		users, documents = db.NewMemoryUsers(), db.NewMemoryDocuments()
	}
	if err := db.SeedAdmin(context.Background(), users, cfg.AdminPassword); err != nil {
		log.Fatalf("创建管理员账号失败: %v", err)
	}

	// 3. 创建编辑会话, 恢复上次保存的轴线
	session := editor.NewSession(cfg.SessionID, cfg.EditorOptions(), axes)
	defer session.Close()
	if err := session.Load(context.Background()); err != nil {
		log.Fatalf("恢复编辑会话失败: %v", err)
	}
	fmt.Printf("编辑会话 %s 已就绪, 轴线数: %d\n", session.ID, len(session.Axes()))

	// 4. 初始化 Gin 引擎并配置路由
	r := gin.Default()
	h := handler.New(cfg, users, documents, session)
	handler.SetupRoutes(r, h, cfg.AuthRequired)

	// 5. 启动服务器
	fmt.Println("\n服务器启动中...")
	fmt.Printf("访问地址: http://localhost:%s\n", cfg.Port)
	fmt.Println("API 文档:")
	fmt.Println("  - POST   /api/login                          - 用户登录")
	fmt.Println("  - POST   /api/register                       - 用户注册")
	fmt.Println("  - POST   /api/roads                          - 上传路网文档")
	fmt.Println("  - GET    /api/roads/:id/features             - 获取文档要素")
	fmt.Println("  - GET    /api/editor/features                - 获取编辑器要素")
	fmt.Println("  - POST   /api/editor/axes                    - 新建轴线")
	fmt.Println("  - PUT    /api/editor/axes/:id/vertices/:idx  - 移动顶点")
	fmt.Println("  - PUT    /api/editor/axes/:id/rounding/:idx  - 设置圆角系数")
	fmt.Println("  - GET    /api/editor/export                  - 导出")
	fmt.Println("  - POST   /api/editor/import                  - 导入")
	fmt.Println("  - POST   /api/editor/route                   - 路径规划")
	if cfg.AuthRequired {
		fmt.Println("修改类接口需要 Authorization: Bearer <token>")
	}
	fmt.Println("\n按 Ctrl+C 退出")

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
