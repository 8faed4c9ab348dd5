package api

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/hoshinonyaruko/snake-grid/memimg"
	"github.com/hoshinonyaruko/snake-grid/structs"
)

const (
	minScale = 0.25
	maxScale = 8
)

// 全局缓存
var (
	// 背景网格，按画布大小和 blockSize 缓存
	drawingCache sync.Map
	// 已写出的帧，按文件路径索引
	frameCache sync.Map

	roundMu sync.Mutex
	// 每个 static 目录当前正在渲染的局
	currentRounds = map[string]string{}
)

type frameKey struct {
	seq       uint64
	blockSize int
	scale     float64
}

type frame struct {
	key   frameKey
	round string
}

// frameFileName 每局每种尺寸一个文件，不同 scale 互不覆盖
func frameFileName(round string, blockSize int, scale float64) string {
	return fmt.Sprintf("%s-%d-%g.png", round, blockSize, scale)
}

// renderImageAndSave 渲染地图并保存为图片，返回文件名
func renderImageAndSave(snap structs.Snapshot, staticDir string, blockSize int, scale float64) (string, error) {
	pruneStaleRounds(staticDir, snap.Round)

	fileName := frameFileName(snap.Round, blockSize, scale)
	path := filepath.Join(staticDir, fileName)
	key := frameKey{seq: snap.Seq, blockSize: blockSize, scale: scale}

	// 状态没有变化就不重新绘制
	if cached, ok := frameCache.Load(path); ok && cached.(frame).key == key {
		if _, err := os.Stat(path); err == nil {
			return fileName, nil
		}
	}

	img := RenderBoard(snap, blockSize)
	if scale != 1 {
		img = imaging.Resize(img, int(float64(img.Bounds().Dx())*scale), 0, imaging.NearestNeighbor)
	}

	if err := os.MkdirAll(staticDir, os.ModePerm); err != nil {
		return "", err
	}
	if err := savePNG(path, img); err != nil {
		return "", err
	}
	frameCache.Store(path, frame{key: key, round: snap.Round})
	return fileName, nil
}

// pruneStaleRounds 新一局第一次渲染时，删掉该目录下之前各局的帧
func pruneStaleRounds(staticDir, round string) {
	dir := filepath.Clean(staticDir)

	roundMu.Lock()
	defer roundMu.Unlock()
	if currentRounds[dir] == round {
		return
	}
	currentRounds[dir] = round

	frameCache.Range(func(k, v interface{}) bool {
		path := k.(string)
		if filepath.Dir(path) != dir || v.(frame).round == round {
			return true
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Printf("remove stale frame %s: %v\n", path, err)
		}
		frameCache.Delete(k)
		return true
	})
}

// savePNG 先写临时文件再改名，避免读到半张图
func savePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RenderBoard draws one snapshot. Game-over frames are blurred and carry
// the final score.
func RenderBoard(snap structs.Snapshot, blockSize int) image.Image {
	gridSize := snap.GridSize
	if gridSize == 0 {
		gridSize = structs.GridSize
	}
	size := gridSize * blockSize

	dc := gg.NewContext(size, size)
	dc.DrawImage(gridBackground(size, blockSize), 0, 0)

	drawCell(dc, snap.Food, blockSize, memimg.SpriteFood, 0.9, 0.27, 0.27)
	for i := len(snap.Snake) - 1; i >= 0; i-- {
		if i == 0 {
			drawCell(dc, snap.Snake[i], blockSize, memimg.SpriteHead, 0.2, 0.55, 0.3)
		} else {
			drawCell(dc, snap.Snake[i], blockSize, memimg.SpriteBody, 0.3, 0.75, 0.45)
		}
	}

	if !snap.GameOver {
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawString(fmt.Sprintf("Score: %d", snap.Score), 4, 14)
		return dc.Image()
	}

	blurred := imaging.Blur(dc.Image(), 3.5)
	over := gg.NewContextForImage(blurred)
	over.SetRGBA(0, 0, 0, 0.5)
	over.DrawRectangle(0, 0, float64(size), float64(size))
	over.Fill()
	over.SetRGB(1, 1, 1)
	over.DrawStringAnchored("Game Over!", float64(size)/2, float64(size)/2-10, 0.5, 0.5)
	over.DrawStringAnchored(fmt.Sprintf("Score: %d", snap.Score), float64(size)/2, float64(size)/2+10, 0.5, 0.5)
	return over.Image()
}

func drawCell(dc *gg.Context, cell structs.Cell, blockSize int, sprite string, r, g, b float64) {
	if img, found := memimg.GetSpriteScaled(sprite, blockSize); found {
		dc.DrawImage(img, cell.X*blockSize, cell.Y*blockSize)
		return
	}
	// 没有贴图时画色块
	dc.SetRGB(r, g, b)
	dc.DrawRectangle(float64(cell.X*blockSize), float64(cell.Y*blockSize), float64(blockSize), float64(blockSize))
	dc.Fill()
}

func gridBackground(size, blockSize int) image.Image {
	key := [2]int{size, blockSize}
	if cached, ok := drawingCache.Load(key); ok {
		return cached.(image.Image)
	}
	dc := gg.NewContext(size, size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	renderGrid(dc, size, size, blockSize)
	img := dc.Image()
	drawingCache.Store(key, img)
	return img
}

func renderGrid(dc *gg.Context, width, height, blockSize int) {
	dc.SetRGB(0.9, 0.9, 0.9)
	for x := 0; x <= width; x += blockSize {
		dc.DrawLine(float64(x), 0, float64(x), float64(height))
		dc.Stroke()
	}
	for y := 0; y <= height; y += blockSize {
		dc.DrawLine(0, float64(y), float64(width), float64(y))
		dc.Stroke()
	}
}
