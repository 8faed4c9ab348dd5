package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	SelfPath      string `json:"selfpath"`
	Port          string `json:"port"`
	Blocksize     int    `json:"blocksize"`
	Mode          string `json:"mode"`          // "web" 或 "term"
	FoodPlacement string `json:"foodplacement"` // "random" 或 "free"
	Sound         bool   `json:"sound"`
	Debug         bool   `json:"debug"`
}

const (
	ModeWeb  = "web"
	ModeTerm = "term"
)

var (
	instance *AppConfig
	once     sync.Once
	mu       sync.RWMutex
)

func defaults() *AppConfig {
	return &AppConfig{
		SelfPath:      "127.0.0.1:38870", // Default value
		Port:          "38870",           // Default value
		Blocksize:     20,
		Mode:          ModeWeb,
		FoodPlacement: "random",
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) AppConfig {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = defaults()
		// Load the config file if it exists, otherwise create one
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			saveConfig(filePath)
		} else {
			loadConfig(filePath)
		}
	})
	return Get()
}

// loadConfig loads the settings from the file
func loadConfig(filePath string) {
	cfg, err := readConfig(filePath)
	if err != nil {
		panic(err)
	}
	instance = cfg
}

// readConfig decodes filePath over a copy of the defaults
func readConfig(filePath string) (*AppConfig, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := defaults()
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Blocksize <= 0 {
		return fmt.Errorf("blocksize must be positive, got %d", c.Blocksize)
	}
	switch c.Mode {
	case ModeWeb, ModeTerm:
	default:
		return fmt.Errorf("unknown mode '%s'", c.Mode)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string) {
	file, err := os.Create(filePath)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(instance); err != nil {
		panic(err)
	}
}

// Get returns a copy of the current configuration
func Get() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return *defaults()
	}
	return *instance
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	cfg := Get()
	switch key {
	case "selfpath":
		return cfg.SelfPath
	case "port":
		return cfg.Port
	case "blocksize":
		return cfg.Blocksize
	case "mode":
		return cfg.Mode
	case "foodplacement":
		return cfg.FoodPlacement
	case "sound":
		return cfg.Sound
	case "debug":
		return cfg.Debug
	default:
		return ""
	}
}

// Watch 监听配置文件，修改后热更新到内存。ctx 结束时返回。
// 解析失败时保留旧配置。
func Watch(ctx context.Context, filePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录，编辑器保存时常常是替换文件
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("watch %s: %w", filePath, err)
	}
	name := filepath.Clean(filePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				reload(filePath)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

func reload(filePath string) {
	cfg, err := readConfig(filePath)
	if err != nil {
		log.Printf("config reload skipped: %v", err)
		return
	}
	mu.Lock()
	old := *defaults()
	if instance != nil {
		old = *instance
	}
	instance = cfg
	mu.Unlock()
	log.Printf("config reloaded from %s", filePath)
	if keys := restartOnlyChanges(old, *cfg); len(keys) > 0 {
		log.Printf("config keys %v changed, restart to apply them", keys)
	}
}

// restartOnlyChanges 返回只在启动时读取、热更新不生效的已修改字段。
// blocksize 和 selfpath 在每次渲染时读取，不在其中
func restartOnlyChanges(old, cur AppConfig) []string {
	var keys []string
	if old.Port != cur.Port {
		keys = append(keys, "port")
	}
	if old.Mode != cur.Mode {
		keys = append(keys, "mode")
	}
	if old.FoodPlacement != cur.FoodPlacement {
		keys = append(keys, "foodplacement")
	}
	if old.Sound != cur.Sound {
		keys = append(keys, "sound")
	}
	if old.Debug != cur.Debug {
		keys = append(keys, "debug")
	}
	return keys
}
