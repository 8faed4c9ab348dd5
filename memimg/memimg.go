// Package memimg keeps the board sprites (food, snake head, snake body)
// in memory and reloads them when the skins folder changes.
package memimg

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
)

// 渲染时使用的贴图文件名
const (
	SpriteFood = "food.png"
	SpriteHead = "head.png"
	SpriteBody = "body.png"
)

type scaledKey struct {
	name string
	size int
}

var (
	sprites      = make(map[string]image.Image)
	scaled       = make(map[scaledKey]image.Image)
	spritesMutex sync.RWMutex
)

// LoadSprites loads every png/jpg under directory, keyed by base name.
func LoadSprites(directory string) error {
	return filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isImage(path) {
			return nil
		}
		img, err := LoadImage(path)
		if err != nil {
			return err
		}
		StoreSprite(filepath.Base(path), img)
		return nil
	})
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// StoreSprite replaces a sprite and drops its scaled copies.
func StoreSprite(name string, img image.Image) {
	spritesMutex.Lock()
	defer spritesMutex.Unlock()
	sprites[name] = img
	dropScaledLocked(name)
}

func RemoveSprite(name string) {
	spritesMutex.Lock()
	defer spritesMutex.Unlock()
	delete(sprites, name)
	dropScaledLocked(name)
}

func dropScaledLocked(name string) {
	for k := range scaled {
		if k.name == name {
			delete(scaled, k)
		}
	}
}

func GetSprite(name string) (image.Image, bool) {
	spritesMutex.RLock()
	img, exists := sprites[name]
	spritesMutex.RUnlock()
	return img, exists
}

// GetSpriteScaled returns the sprite resized to size x size, caching the
// result until the sprite changes.
func GetSpriteScaled(name string, size int) (image.Image, bool) {
	key := scaledKey{name: name, size: size}
	spritesMutex.RLock()
	img, ok := scaled[key]
	spritesMutex.RUnlock()
	if ok {
		return img, true
	}

	src, ok := GetSprite(name)
	if !ok {
		return nil, false
	}
	img = imaging.Resize(src, size, size, imaging.Lanczos)

	spritesMutex.Lock()
	// 缩放期间贴图可能被替换，只缓存仍然有效的结果
	if sprites[name] == src {
		scaled[key] = img
	}
	spritesMutex.Unlock()
	return img, true
}

// WatchSprites 检测并热更新贴图到内存，ctx 结束时返回
func WatchSprites(ctx context.Context, directory string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return fmt.Errorf("watch %s: %w", directory, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImage(event.Name) {
				continue
			}
			name := filepath.Base(event.Name)
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create:
				img, err := LoadImage(event.Name)
				if err != nil {
					// 文件可能还没写完，等下一次写事件
					continue
				}
				StoreSprite(name, img)
				log.Printf("sprite %s reloaded", name)
			case event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename:
				RemoveSprite(name)
				log.Printf("sprite %s removed", name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("sprite watcher error: %v", err)
		}
	}
}
