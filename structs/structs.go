package structs

import "fmt"

// GridSize 地图边长，地图为 GridSize x GridSize 的方格
const GridSize = 20

// Cell 描述游戏地图上的一个坐标位置，原点在左上角。
type Cell struct {
	X int `json:"x"` // X坐标
	Y int `json:"y"` // Y坐标
}

// Add returns c shifted by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// InBounds reports whether c lies on the grid.
func (c Cell) InBounds() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize
}

// Index 将坐标压缩为一个整数，用于占用表
func (c Cell) Index() int {
	return c.Y*GridSize + c.X
}

// Direction 移动方向
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directionNames = [...]string{"up", "down", "left", "right"}

func (d Direction) String() string {
	if d < Up || d > Right {
		return "unknown"
	}
	return directionNames[d]
}

// Opposite returns the direction pointing back the way d came.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Vector is the unit step of d.
func (d Direction) Vector() Cell {
	switch d {
	case Up:
		return Cell{X: 0, Y: -1}
	case Down:
		return Cell{X: 0, Y: 1}
	case Left:
		return Cell{X: -1, Y: 0}
	default:
		return Cell{X: 1, Y: 0}
	}
}

// MarshalText 方向在 json 中以 "up"/"down"/"left"/"right" 表示
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, ok := ParseDirection(string(text))
	if !ok {
		return fmt.Errorf("invalid direction '%s'", text)
	}
	*d = parsed
	return nil
}

// ParseDirection 解析方向，支持键盘按键名 (ArrowUp) 与小写名 (up)
func ParseDirection(name string) (Direction, bool) {
	switch name {
	case "ArrowUp", "up", "UP":
		return Up, true
	case "ArrowDown", "down", "DOWN":
		return Down, true
	case "ArrowLeft", "left", "LEFT":
		return Left, true
	case "ArrowRight", "right", "RIGHT":
		return Right, true
	}
	return Up, false
}

// Snapshot 描述一次状态变化之后的只读游戏状态，交给渲染层绘制。
type Snapshot struct {
	Round     string    `json:"round"`     // 本局标识，每次重开都会变化
	Seq       uint64    `json:"seq"`       // 发布序号
	Snake     []Cell    `json:"snake"`     // 蛇身，蛇头在前
	Food      Cell      `json:"food"`      // 食物位置
	Score     int       `json:"score"`     // 分数
	GameOver  bool      `json:"game_over"` // 是否结束
	Direction Direction `json:"direction"` // 当前方向
	GridSize  int       `json:"grid_size"` // 地图边长
}

// Head returns the first cell of the snake body.
func (s Snapshot) Head() Cell {
	if len(s.Snake) == 0 {
		return Cell{}
	}
	return s.Snake[0]
}
