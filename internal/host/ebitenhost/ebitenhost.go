// Package ebitenhost runs a player in a desktop window. Ebiten's update loop
// is the display clock; the mouse and touch screen drive dragging.
package ebitenhost

import (
	"errors"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameseq"
	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/raster"
)

var errQuit = errors.New("quit")

// Game is an ebiten.Game showing one player. The surface width follows the
// window; its height follows the player's ratio and the frame is centered
// vertically.
type Game struct {
	loop    *host.Loop
	surface *raster.Surface
	player  *frameseq.Player
	log     zerolog.Logger

	window *ebiten.Image

	outsideW, outsideH float64
	dpr                float64
	sized              bool

	mouseDown   bool
	touchID     ebiten.TouchID
	touchActive bool
	lastX       float64
	lastY       float64
}

func New(loop *host.Loop, surface *raster.Surface, player *frameseq.Player, log zerolog.Logger) *Game {
	return &Game{loop: loop, surface: surface, player: player, log: log, dpr: 1}
}

// Run opens a window of w×h logical pixels and blocks until it is closed.
func Run(g *Game, title string, w, h int) error {
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(true)
	err := ebiten.RunGame(g)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return errQuit
	}
	g.applyLayout()
	g.handleKeys()
	g.handleMouse()
	g.handleTouch()

	g.loop.RunFrame(g.loop.Now())

	if g.player.Dragging() {
		ebiten.SetCursorShape(ebiten.CursorShapeMove)
	} else {
		ebiten.SetCursorShape(ebiten.CursorShapeDefault)
	}
	return nil
}

// applyLayout hands a changed window size to the player.
func (g *Game) applyLayout() {
	if g.outsideW <= 0 {
		return
	}
	if g.sized && g.surface.LockedWidth == g.outsideW && g.surface.DPR == g.dpr {
		return
	}
	g.surface.LockedWidth = g.outsideW
	g.surface.DPR = g.dpr
	g.sized = true
	g.player.UpdateCanvas()
	g.log.Debug().
		Float64("width", g.outsideW).
		Float64("dpr", g.dpr).
		Int("pixel_width", g.surface.Width()).
		Int("pixel_height", g.surface.Height()).
		Msg("surface resized")
}

func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.player.Toggle()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		g.player.Next()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		g.player.Prev()
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		g.player.Reset()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.player.SetReverse(!g.player.Reverse())
	}
}

func (g *Game) handleMouse() {
	x, y := g.toSurface(ebiten.CursorPosition())
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		g.mouseDown = true
		g.player.HandlePointer(frameseq.Sample{X: x, Y: y, Phase: frameseq.PointerStart})
	case g.mouseDown && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		g.mouseDown = false
		g.player.HandlePointer(frameseq.Sample{X: x, Y: y, Phase: frameseq.PointerEnd})
	case g.mouseDown:
		g.player.HandlePointer(frameseq.Sample{X: x, Y: y, Phase: frameseq.PointerMove})
	}
}

// handleTouch follows the first finger down until it lifts.
func (g *Game) handleTouch() {
	if !g.touchActive {
		ids := inpututil.AppendJustPressedTouchIDs(nil)
		if len(ids) == 0 {
			return
		}
		g.touchID, g.touchActive = ids[0], true
		g.lastX, g.lastY = g.toSurface(ebiten.TouchPosition(g.touchID))
		g.player.HandlePointer(frameseq.Sample{
			X: g.lastX, Y: g.lastY,
			Phase:      frameseq.PointerStart,
			Touch:      true,
			Cancelable: true,
		})
		return
	}

	if inpututil.IsTouchJustReleased(g.touchID) {
		g.touchActive = false
		g.player.HandlePointer(frameseq.Sample{X: g.lastX, Y: g.lastY, Phase: frameseq.PointerEnd, Touch: true})
		return
	}
	g.lastX, g.lastY = g.toSurface(ebiten.TouchPosition(g.touchID))
	g.player.HandlePointer(frameseq.Sample{X: g.lastX, Y: g.lastY, Phase: frameseq.PointerMove, Touch: true})
}

// toSurface converts screen pixels into logical surface coordinates.
func (g *Game) toSurface(x, y int) (float64, float64) {
	_, offY := g.offset()
	return float64(x) / g.dpr, (float64(y) - offY) / g.dpr
}

// offset is where the surface is drawn on the screen, in device pixels.
func (g *Game) offset() (float64, float64) {
	screenH := math.Round(g.outsideH * g.dpr)
	return 0, math.Max(0, math.Round((screenH-float64(g.surface.Height()))/2))
}

func (g *Game) Draw(screen *ebiten.Image) {
	img := g.surface.Image()
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	if g.window == nil || g.window.Bounds().Dx() != w || g.window.Bounds().Dy() != h {
		if g.window != nil {
			g.window.Deallocate()
		}
		g.window = ebiten.NewImage(w, h)
	}
	g.window.WritePixels(img.Pix)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(g.offset())
	screen.DrawImage(g.window, op)
}

// Layout reports a screen in device pixels so frames are not resampled.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	dpr := ebiten.Monitor().DeviceScaleFactor()
	if dpr <= 0 {
		dpr = 1
	}
	g.outsideW, g.outsideH, g.dpr = float64(outsideWidth), float64(outsideHeight), dpr
	return int(math.Ceil(g.outsideW * dpr)), int(math.Ceil(g.outsideH * dpr))
}
