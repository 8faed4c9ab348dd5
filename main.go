package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-grid/api"
	"github.com/hoshinonyaruko/snake-grid/config"
	"github.com/hoshinonyaruko/snake-grid/memimg"
	"github.com/hoshinonyaruko/snake-grid/session"
	"github.com/hoshinonyaruko/snake-grid/snake"
	"github.com/hoshinonyaruko/snake-grid/sound"
	"github.com/hoshinonyaruko/snake-grid/term"
)

const (
	configPath = "./config.json"
	staticDir  = "./static"
	skinsDir   = "./skins"
)

var modeFlag = flag.String("mode", "", "override config mode: web or term")

func main() {
	os.Exit(run())
}

// run 返回退出码，defer 的清理在 os.Exit 之前全部执行
func run() int {
	flag.Parse()
	EnsureFoldersExist()
	// Initialize the configuration
	cfg := config.LoadConfig(configPath)
	mode := cfg.Mode
	if *modeFlag != "" {
		mode = *modeFlag
	}

	// 终端模式下屏幕归 tcell 所有，日志写文件或丢弃
	if mode == config.ModeTerm {
		if logFile := setupLogging(cfg.Debug); logFile != nil {
			defer logFile.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 配置热更新
	go func() {
		if err := config.Watch(ctx, configPath); err != nil {
			log.Printf("config watch stopped: %v", err)
		}
	}()
	// 载入贴图到内存，并检测热更新
	if err := memimg.LoadSprites(skinsDir); err != nil {
		log.Printf("Failed to load sprites: %v", err)
	}
	go func() {
		if err := memimg.WatchSprites(ctx, skinsDir); err != nil {
			log.Printf("sprite watch stopped: %v", err)
		}
	}()

	placer, err := snake.NewPlacer(cfg.FoodPlacement, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		log.Printf("Invalid config: %v", err)
		return 2
	}
	sess := session.New(snake.NewGame(placer))
	go sess.Run(ctx)

	if cfg.Sound {
		if player, err := sound.NewPlayer(); err == nil {
			defer player.Close()
			go sound.Follow(ctx, sess, player)
		} else {
			// Non-fatal, game can run without sound
			log.Printf("Audio initialization failed: %v", err)
		}
	}

	switch mode {
	case config.ModeTerm:
		err = runTerm(ctx, sess)
	default:
		err = runWeb(ctx, sess, cfg.Port)
	}
	stop()
	<-sess.Done()
	if err != nil {
		log.Printf("%s: %v", mode, err)
		return 1
	}
	return 0
}

func runTerm(ctx context.Context, sess *session.Session) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	return term.Run(ctx, screen, sess)
}

func runWeb(ctx context.Context, sess *session.Session, port string) error {
	router := gin.Default()
	api.Register(router, sess, staticDir)

	// 从配置单例读取端口 监听
	srv := &http.Server{Addr: ":" + port, Handler: router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// EnsureFoldersExists 检查并创建必需的文件夹
func EnsureFoldersExist() {
	folders := []string{staticDir, skinsDir}

	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			err := os.Mkdir(folder, 0755) // 使用0755权限以确保读写权限
			if err != nil {
				// 如果创建失败，则记录错误并可能退出程序
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		} else {
			// 文件夹已存在
			log.Printf("%s directory already exists", folder)
		}
	}
}
