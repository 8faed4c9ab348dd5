package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-grid/config"
	"github.com/hoshinonyaruko/snake-grid/session"
	"github.com/hoshinonyaruko/snake-grid/structs"
)

// Game is the part of the running session the handlers use.
type Game interface {
	Press(ctx context.Context, key string) (bool, error)
	Restart(ctx context.Context) (structs.Snapshot, error)
	Snapshot() structs.Snapshot
	Subscribe(buffer int) (<-chan structs.Snapshot, func())
}

// Register 注册全部路由
func Register(router *gin.Engine, game Game, staticDir string) {
	// 处理玩家改变方向
	router.GET("/update-direction", UpdateDirection(game))
	// 重新开始
	router.GET("/restart", RestartHandler(game))
	// 当前状态
	router.GET("/state", StateHandler(game))
	// 渲染函数 返回静态地址
	router.GET("/render-map", RenderMapHandler(game, staticDir))
	// 状态推送
	router.GET("/ws", StreamHandler(game))
	router.Static("/static", staticDir) // 静态文件服务
}

func UpdateDirection(game Game) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			key = c.Query("direction")
		}

		// 验证是否提供了必要的查询参数
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameters: key or direction"})
			return
		}

		accepted, err := game.Press(c.Request.Context(), key)
		if err != nil {
			abortWithSessionError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"accepted": accepted, "direction": game.Snapshot().Direction})
	}
}

func RestartHandler(game Game) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := game.Restart(c.Request.Context())
		if err != nil {
			abortWithSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func StateHandler(game Game) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, game.Snapshot())
	}
}

func RenderMapHandler(game Game, staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scale, err := strconv.ParseFloat(c.DefaultQuery("scale", "1"), 64)
		if err != nil || scale < minScale || scale > maxScale {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("scale must be between %v and %v", minScale, maxScale)})
			return
		}

		snap := game.Snapshot()
		blockSize := config.GetConfigValue("blocksize").(int)

		// 绘图
		fileName, err := renderImageAndSave(snap, staticDir, blockSize, scale)
		if err != nil {
			fmt.Printf("err renderImageAndSave :%v\n", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to render game map"})
			return
		}

		imageUrl := fmt.Sprintf("http://%s/static/%s", config.GetConfigValue("selfpath").(string), fileName)
		c.JSON(http.StatusOK, gin.H{"image_url": imageUrl, "seq": snap.Seq, "game_over": snap.GameOver})
	}
}

func abortWithSessionError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Game is not running"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
