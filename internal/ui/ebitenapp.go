// Package ui is the thin ebiten-based reference host: it drives an
// emu.System, forwards keyboard input, renders frames, and streams audio. It
// is a consumer of the engine's public surface, not part of the core.
package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cvgb/goboy/internal/emu"
)

type App struct {
	cfg Config
	sys *emu.System

	tex    *ebiten.Image
	paused bool
	muted  bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream
}

// NewApp wires a reference host around an already-loaded System.
func NewApp(cfg Config, sys *emu.System) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)

	a := &App{cfg: cfg, sys: sys}
	a.tex = ebiten.NewImage(160, 144)
	a.audioCtx = audio.NewContext(48000)
	return a
}

func (a *App) ensureAudioPlayer() {
	if a.audioPlayer != nil || a.sys == nil {
		return
	}
	a.audioSrc = &apuStream{
		sys:        a.sys,
		mono:       !a.cfg.AudioStereo,
		muted:      &a.muted,
		lowLatency: a.cfg.AudioLowLatency,
	}
	p, err := a.audioCtx.NewPlayer(a.audioSrc)
	if err != nil {
		return
	}
	a.audioPlayer = p
	a.applyPlayerBufferSize()
	a.audioPlayer.Play()
}

func (a *App) Update() error {
	a.ensureAudioPlayer()

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.muted = !a.muted
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}

	a.sys.SetButtons(emu.Buttons{
		Right:  ebiten.IsKeyPressed(ebiten.KeyRight),
		Left:   ebiten.IsKeyPressed(ebiten.KeyLeft),
		Up:     ebiten.IsKeyPressed(ebiten.KeyUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyDown),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShiftRight),
	})

	if !a.paused {
		a.sys.StepFrame()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	rgb := a.sys.GetFrame()
	rgba := make([]byte, 160*144*4)
	for i, j := 0, 0; i < len(rgb); i, j = i+3, j+4 {
		rgba[j+0] = rgb[i+0]
		rgba[j+1] = rgb[i+1]
		rgba[j+2] = rgb[i+2]
		rgba[j+3] = 0xFF
	}
	a.tex.WritePixels(rgba)

	opts := &ebiten.DrawImageOptions{}
	opts.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, opts)

	if a.paused {
		ebitenutil.DebugPrint(screen, "PAUSED (P to resume)")
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160 * a.cfg.Scale, 144 * a.cfg.Scale
}

// Run starts the ebiten game loop; it blocks until the window is closed.
func (a *App) Run() error {
	return ebiten.RunGame(a)
}
