// Package term is the terminal front end: arrow keys steer, the board is
// redrawn after every published snapshot.
package term

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/hoshinonyaruko/snake-grid/session"
	"github.com/hoshinonyaruko/snake-grid/structs"
)

// Game is the part of the running session the terminal uses.
type Game interface {
	Press(ctx context.Context, key string) (bool, error)
	Restart(ctx context.Context) (structs.Snapshot, error)
	Snapshot() structs.Snapshot
	Subscribe(buffer int) (<-chan structs.Snapshot, func())
}

const cellWidth = 2

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	headStyle   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	bodyStyle   = tcell.StyleDefault.Foreground(tcell.ColorLime)
	foodStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	textStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	overStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

type action int

const (
	actionNone action = iota
	actionMove
	actionRestart
	actionQuit
)

func keyAction(key tcell.Key, r rune) (action, string) {
	switch key {
	case tcell.KeyUp:
		return actionMove, "ArrowUp"
	case tcell.KeyDown:
		return actionMove, "ArrowDown"
	case tcell.KeyLeft:
		return actionMove, "ArrowLeft"
	case tcell.KeyRight:
		return actionMove, "ArrowRight"
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return actionQuit, ""
	case tcell.KeyEnter:
		return actionRestart, ""
	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			return actionQuit, ""
		case 'r', 'R':
			return actionRestart, ""
		}
	}
	return actionNone, ""
}

// Run handles input and drawing until the player quits, ctx ends or the
// session closes. The caller owns screen and must Fini it afterwards.
func Run(ctx context.Context, screen tcell.Screen, game Game) error {
	sub, cancel := game.Subscribe(4)
	defer cancel()

	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	snap := game.Snapshot()
	Draw(screen, snap)

	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			snap = next
			Draw(screen, snap)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				act, key := keyAction(ev.Key(), ev.Rune())
				var err error
				switch act {
				case actionQuit:
					return nil
				case actionMove:
					_, err = game.Press(ctx, key)
				case actionRestart:
					// 和原版一样，只有结束后才能重开
					if snap.GameOver {
						_, err = game.Restart(ctx)
					}
				}
				if err != nil {
					if errors.Is(err, session.ErrClosed) || errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			case *tcell.EventResize:
				screen.Sync()
				Draw(screen, snap)
			}
		}
	}
}

// cellOrigin maps a grid cell to its left screen column and row. Row 0
// holds the score and row 1 the top border.
func cellOrigin(c structs.Cell) (int, int) {
	return 1 + c.X*cellWidth, 2 + c.Y
}

func Draw(screen tcell.Screen, snap structs.Snapshot) {
	screen.Clear()

	size := snap.GridSize
	if size == 0 {
		size = structs.GridSize
	}
	drawText(screen, 0, 0, textStyle, fmt.Sprintf("Score: %d", snap.Score))
	drawBorder(screen, size*cellWidth+1, size+2)

	fx, fy := cellOrigin(snap.Food)
	screen.SetContent(fx, fy, '●', nil, foodStyle)

	for i := len(snap.Snake) - 1; i >= 0; i-- {
		style := bodyStyle
		if i == 0 {
			style = headStyle
		}
		x, y := cellOrigin(snap.Snake[i])
		screen.SetContent(x, y, '█', nil, style)
		screen.SetContent(x+1, y, '█', nil, style)
	}

	if snap.GameOver {
		drawText(screen, 0, size+3, overStyle, "Game Over!  r: restart  q: quit")
	} else {
		drawText(screen, 0, size+3, textStyle, "arrows: move  q: quit")
	}
	screen.Show()
}

func drawBorder(screen tcell.Screen, right, bottom int) {
	for x := 1; x < right; x++ {
		screen.SetContent(x, 1, '─', nil, borderStyle)
		screen.SetContent(x, bottom, '─', nil, borderStyle)
	}
	for y := 2; y < bottom; y++ {
		screen.SetContent(0, y, '│', nil, borderStyle)
		screen.SetContent(right, y, '│', nil, borderStyle)
	}
	screen.SetContent(0, 1, '┌', nil, borderStyle)
	screen.SetContent(right, 1, '┐', nil, borderStyle)
	screen.SetContent(0, bottom, '└', nil, borderStyle)
	screen.SetContent(right, bottom, '┘', nil, borderStyle)
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
