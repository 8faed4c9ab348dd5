package snake

import (
	"fmt"
	"math/rand"

	"github.com/hoshinonyaruko/snake-grid/structs"
	"github.com/kamstrup/intmap"
)

// 食物生成策略
const (
	PlacementRandom = "random"
	PlacementFree   = "free"
)

// FoodPlacer picks the cell for the next food. body is the snake as it
// will be after the current tick.
type FoodPlacer interface {
	Place(body []structs.Cell) structs.Cell
}

// NewPlacer builds the placer named by the foodplacement config value.
func NewPlacer(name string, rng *rand.Rand) (FoodPlacer, error) {
	switch name {
	case "", PlacementRandom:
		return NewRandomFood(rng), nil
	case PlacementFree:
		return NewFreeFood(rng), nil
	default:
		return nil, fmt.Errorf("unknown food placement '%s'", name)
	}
}

// RandomFood places food uniformly over the whole grid and may land on
// the snake.
type RandomFood struct {
	rng *rand.Rand
}

func NewRandomFood(rng *rand.Rand) *RandomFood {
	return &RandomFood{rng: rng}
}

func (f *RandomFood) Place(_ []structs.Cell) structs.Cell {
	return GenerateRandomPosition(f.rng)
}

// GenerateRandomPosition 生成地图内的随机位置
func GenerateRandomPosition(rng *rand.Rand) structs.Cell {
	return structs.Cell{
		X: rng.Intn(structs.GridSize),
		Y: rng.Intn(structs.GridSize),
	}
}

// FreeFood places food uniformly over the cells the snake does not
// occupy. A full board falls back to RandomFood.
type FreeFood struct {
	rng      *rand.Rand
	fallback *RandomFood
}

func NewFreeFood(rng *rand.Rand) *FreeFood {
	return &FreeFood{rng: rng, fallback: NewRandomFood(rng)}
}

func (f *FreeFood) Place(body []structs.Cell) structs.Cell {
	occupied := intmap.New[int, struct{}](len(body))
	for _, c := range body {
		if c.InBounds() {
			occupied.Put(c.Index(), struct{}{})
		}
	}

	total := structs.GridSize * structs.GridSize
	free := total - occupied.Len()
	if free <= 0 {
		return f.fallback.Place(body)
	}

	// 在空格中取第 n 个
	n := f.rng.Intn(free)
	for i := 0; i < total; i++ {
		if occupied.Has(i) {
			continue
		}
		if n == 0 {
			return structs.Cell{X: i % structs.GridSize, Y: i / structs.GridSize}
		}
		n--
	}
	return f.fallback.Place(body)
}
