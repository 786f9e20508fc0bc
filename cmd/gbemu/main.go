// Command gbemu is the reference host: it loads a ROM, drives the emulation
// engine, and either renders it through an ebiten window or runs headlessly
// for scripted checks (frame-count CRC32, PNG dump).
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvgb/goboy/internal/emu"
	"github.com/cvgb/goboy/internal/ui"
)

type flags struct {
	romPath  string
	bootROM  string
	scale    int
	title    string
	saveRAM  bool
	headless bool
	frames   int
	outPNG   string
	expect   string
}

func main() {
	var f flags
	root := &cobra.Command{
		Use:   "gbemu",
		Short: "Game Boy / Game Boy Color reference host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	root.Flags().StringVar(&f.romPath, "rom", "", "path to ROM (.gb/.gbc)")
	root.Flags().StringVar(&f.bootROM, "bootrom", "", "optional DMG boot ROM")
	root.Flags().IntVar(&f.scale, "scale", 3, "window scale")
	root.Flags().StringVar(&f.title, "title", "gbemu", "window title")
	root.Flags().BoolVar(&f.saveRAM, "save", true, "persist battery RAM to ROM.sav")
	root.Flags().BoolVar(&f.headless, "headless", false, "run without a window")
	root.Flags().IntVar(&f.frames, "frames", 300, "frames to run in headless mode")
	root.Flags().StringVar(&f.outPNG, "outpng", "", "write last framebuffer to PNG")
	root.Flags().StringVar(&f.expect, "expect", "", "assert framebuffer CRC32 (hex)")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(f flags) error {
	if f.romPath == "" {
		return fmt.Errorf("--rom is required")
	}
	sys := emu.New(emu.Config{})
	if err := sys.LoadROMFromFile(f.romPath); err != nil {
		return fmt.Errorf("load rom: %w", err)
	}
	if h := sys.Header(); h != nil {
		log.Printf("ROM: %q type=%s", h.Title, h.CartTypeStr)
	}
	if f.bootROM != "" {
		data, err := os.ReadFile(f.bootROM)
		if err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
		sys.SetBootROM(data)
	}

	savPath := strings.TrimSuffix(f.romPath, ".gb") + ".sav"
	if f.saveRAM {
		if data, err := os.ReadFile(savPath); err == nil {
			sys.LoadRAM(data)
			log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
		}
	}

	defer func() {
		if !f.saveRAM {
			return
		}
		if data := sys.SaveRAM(); data != nil {
			if err := os.WriteFile(savPath, data, 0o644); err == nil {
				log.Printf("wrote %s", savPath)
			}
		}
	}()

	if f.headless {
		return runHeadless(sys, f.frames, f.outPNG, f.expect)
	}

	uiCfg := ui.Config{Title: f.title, Scale: f.scale}
	app := ui.NewApp(uiCfg, sys)
	return app.Run()
}

func runHeadless(sys *emu.System, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		sys.StepFrame()
	}
	dur := time.Since(start)

	rgb := sys.GetFrame()
	crc := crc32.ChecksumIEEE(rgb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(rgb, sys.Width(), sys.Height(), pngPath); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(rgb []byte, w, h int, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(rgb); i, j = i+3, j+4 {
		img.Pix[j+0] = rgb[i+0]
		img.Pix[j+1] = rgb[i+1]
		img.Pix[j+2] = rgb[i+2]
		img.Pix[j+3] = 0xFF
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
