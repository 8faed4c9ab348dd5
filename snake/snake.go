// 关于的蛇的更新
package snake

import (
	"github.com/hoshinonyaruko/snake-grid/structs"
)

// 初始状态，重开时全部恢复
var (
	InitialSnake     = []structs.Cell{{X: 10, Y: 10}}
	InitialDirection = structs.Right
	InitialFood      = structs.Cell{X: 15, Y: 15}
)

// Game is the single-player state machine. It is not safe for concurrent
// use; the session loop owns it.
type Game struct {
	body      []structs.Cell
	direction structs.Direction
	heading   structs.Direction // 上一次移动实际使用的方向
	food      structs.Cell
	score     int
	gameOver  bool
	placer    FoodPlacer
}

// NewGame returns a game in its initial state. placer decides where food
// reappears after it is eaten.
func NewGame(placer FoodPlacer) *Game {
	g := &Game{placer: placer}
	g.Restart()
	return g
}

// Restart resets every field to its initial value.
func (g *Game) Restart() {
	g.body = append([]structs.Cell(nil), InitialSnake...)
	g.direction = InitialDirection
	g.heading = InitialDirection
	g.food = InitialFood
	g.score = 0
	g.gameOver = false
}

// AdvanceTick moves the snake one cell. It reports whether the state
// changed, which is false only when the game is already over.
func (g *Game) AdvanceTick() bool {
	if g.gameOver {
		return false
	}

	newBody := MoveSnake(g.body, g.direction)
	head := newBody[0]

	// 吃到食物不去掉尾巴，蛇变长
	if head == g.food {
		g.score++
		g.food = g.placer.Place(newBody)
	} else {
		newBody = newBody[:len(newBody)-1]
	}
	g.heading = g.direction

	// 碰撞按移动前的蛇身判断，撞了就保留上一帧的蛇
	if CheckCollision(head, g.body) {
		g.gameOver = true
		return true
	}

	g.body = newBody
	return true
}

// SetDirection changes the direction used by the next tick. Reversing
// onto the current direction, or onto the heading travelled last tick, is
// rejected.
func (g *Game) SetDirection(d structs.Direction) bool {
	// Stricter than checking the pending direction alone: with heading
	// RIGHT and a pending UP, LEFT is still refused until the tick moves up.
	if d == g.direction.Opposite() || d == g.heading.Opposite() {
		return false
	}
	g.direction = d
	return true
}

// Press maps a key name such as "ArrowUp" to SetDirection. Unknown keys
// are ignored.
func (g *Game) Press(key string) bool {
	d, ok := structs.ParseDirection(key)
	if !ok {
		return false
	}
	return g.SetDirection(d)
}

func (g *Game) Body() []structs.Cell {
	return append([]structs.Cell(nil), g.body...)
}

func (g *Game) Head() structs.Cell {
	return g.body[0]
}

func (g *Game) Direction() structs.Direction {
	return g.direction
}

func (g *Game) Food() structs.Cell {
	return g.food
}

func (g *Game) Score() int {
	return g.score
}

func (g *Game) GameOver() bool {
	return g.gameOver
}

// MoveSnake returns a new body with the next head prepended. The tail is
// kept; callers drop it when the snake did not eat.
func MoveSnake(body []structs.Cell, d structs.Direction) []structs.Cell {
	newBody := make([]structs.Cell, 0, len(body)+1)
	newBody = append(newBody, body[0].Add(d.Vector()))
	return append(newBody, body...)
}

// CheckCollision reports whether head hits a wall or any cell of body.
func CheckCollision(head structs.Cell, body []structs.Cell) bool {
	if !head.InBounds() {
		return true
	}
	return positionOverlap(body, head)
}

func positionOverlap(body []structs.Cell, pos structs.Cell) bool {
	for _, c := range body {
		if c == pos {
			return true
		}
	}
	return false
}
