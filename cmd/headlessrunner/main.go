// Command headlessrunner drives the CPU/bus core directly (no PPU/window)
// against blargg-style test ROMs: it watches serial output for a pass/fail
// marker and reports the result as a styled banner plus a process exit code.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cvgb/goboy/internal/bus"
	"github.com/cvgb/goboy/internal/cpu"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(0, 1)
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")).Padding(0, 1)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type writerFunc func(p []byte) (n int, err error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

type runFlags struct {
	romPath          string
	bootPath         string
	steps            int
	startPC          int
	trace            bool
	until            string
	auto             bool
	timeout          time.Duration
	traceOnFail      bool
	traceWindow      int
	serialWindowSize int
}

func main() {
	var f runFlags
	root := &cobra.Command{
		Use:   "headlessrunner",
		Short: "headless CPU/bus runner for blargg-style test ROMs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.romPath, "rom", "", "path to ROM (.gb)")
	fl.StringVar(&f.bootPath, "bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	fl.IntVar(&f.steps, "steps", 5_000_000, "max CPU steps to run")
	fl.IntVar(&f.startPC, "pc", 0x0100, "initial PC value")
	fl.BoolVar(&f.trace, "trace", false, "print PC/opcode/register trace for every step")
	fl.StringVar(&f.until, "until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	fl.BoolVar(&f.auto, "auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit 0/1")
	fl.DurationVar(&f.timeout, "timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	fl.BoolVar(&f.traceOnFail, "trace-on-fail", false, "on -auto failure, print a recent trace window (slower)")
	fl.IntVar(&f.traceWindow, "trace-window", 200, "instructions retained for trace-on-fail")
	fl.IntVar(&f.serialWindowSize, "serial-window", 8192, "serial bytes retained for diagnostics on fail")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

type traceEntry struct {
	pc                     uint16
	op                     byte
	cyc                    int
	a, f, b, c, d, e, h, l byte
	sp                     uint16
	ime                    bool
	ifReg, ie              byte
}

func formatTrace(te traceEntry) string {
	return fmt.Sprintf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X",
		te.pc, te.op, te.cyc, te.a, te.f, te.b, te.c, te.d, te.e, te.h, te.l, te.sp, te.ime, te.ifReg, te.ie)
}

func run(f runFlags) error {
	if f.romPath == "" {
		return fmt.Errorf("--rom is required")
	}
	rom, err := os.ReadFile(f.romPath)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if f.bootPath != "" {
		boot, err = os.ReadFile(f.bootPath)
		if err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
	}

	b := bus.New(rom)
	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
	}

	var ser bytes.Buffer
	serialWindow := f.serialWindowSize
	if serialWindow < 256 {
		serialWindow = 256
	}
	serRing := make([]byte, serialWindow)
	serRingIdx, serRingFill := 0, 0

	w := io.Writer(os.Stdout)
	if f.until != "" || f.auto {
		w = io.MultiWriter(os.Stdout, &ser, writerFunc(func(p []byte) (int, error) {
			for _, ch := range p {
				serRing[serRingIdx] = ch
				serRingIdx = (serRingIdx + 1) % serialWindow
				if serRingFill < serialWindow {
					serRingFill++
				}
			}
			return len(p), nil
		}))
	}
	b.SetSerialWriter(w)

	c := cpu.New(b)
	if len(boot) >= 0x100 {
		c.SP = 0xFFFE
		c.PC = 0x0000
		c.IME = false
	} else {
		c.ResetNoBoot()
		c.SetPC(uint16(f.startPC))
		b.Write(0xFF00, 0xCF)
		b.Write(0xFF05, 0x00)
		b.Write(0xFF06, 0x00)
		b.Write(0xFF07, 0x00)
		b.Write(0xFF40, 0x91)
		b.Write(0xFF42, 0x00)
		b.Write(0xFF43, 0x00)
		b.Write(0xFF45, 0x00)
		b.Write(0xFF47, 0xFC)
		b.Write(0xFF48, 0xFF)
		b.Write(0xFF49, 0xFF)
		b.Write(0xFF4A, 0x00)
		b.Write(0xFF4B, 0x00)
		b.Write(0xFFFF, 0x00)
	}

	start := time.Now()
	var deadline time.Time
	if f.timeout > 0 {
		deadline = start.Add(f.timeout)
	}
	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	stageRe := regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
	lastStage := ""

	ring := make([]traceEntry, f.traceWindow)
	ringIdx, ringFill := 0, 0
	var cycles int

	done := func(steps int) string {
		return fmt.Sprintf("steps=%d cycles~=%d elapsed=%s", steps, cycles, time.Since(start).Truncate(time.Millisecond))
	}

	for i := 0; i < f.steps; i++ {
		pc := c.PC
		var op byte
		if f.trace || f.traceOnFail {
			op = b.Read(pc)
		}
		cyc := c.Step()
		cycles += cyc
		if f.trace || f.traceOnFail {
			te := traceEntry{
				pc: pc, op: op, cyc: cyc,
				a: c.A, f: c.F, b: c.B, c: c.C, d: c.D, e: c.E, h: c.H, l: c.L,
				sp: c.SP, ime: c.IME, ifReg: b.Read(0xFF0F), ie: b.Read(0xFFFF),
			}
			if f.trace {
				fmt.Println(formatTrace(te))
			}
			if f.traceOnFail && f.traceWindow > 0 {
				ring[ringIdx] = te
				ringIdx = (ringIdx + 1) % f.traceWindow
				if ringFill < f.traceWindow {
					ringFill++
				}
			}
		}

		if f.auto {
			s := ser.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Println(passStyle.Render("PASS"))
				if lastStage != "" {
					fmt.Println(infoStyle.Render("last stage: " + lastStage))
				}
				fmt.Println(infoStyle.Render(done(i + 1)))
				os.Exit(0)
			}
			if m := failRe.FindStringSubmatch(s); m != nil {
				fmt.Println(failStyle.Render("FAIL: " + m[0]))
				if lastStage != "" {
					fmt.Println(infoStyle.Render("last stage: " + lastStage))
				}
				if f.traceOnFail && ringFill > 0 {
					fmt.Printf("\n--- recent trace (last %d instructions) ---\n", ringFill)
					startIdx := (ringIdx - ringFill + f.traceWindow) % f.traceWindow
					for j := 0; j < ringFill; j++ {
						idx := (startIdx + j) % f.traceWindow
						fmt.Println(formatTrace(ring[idx]))
					}
					fmt.Println("--- end trace ---")
				}
				if serRingFill > 0 {
					fmt.Printf("\n--- recent serial (last %d bytes) ---\n", serRingFill)
					s0 := (serRingIdx - serRingFill + serialWindow) % serialWindow
					for j := 0; j < serRingFill; j++ {
						fmt.Printf("%c", serRing[(s0+j)%serialWindow])
					}
					fmt.Println("\n--- end serial ---")
				}
				fmt.Println(infoStyle.Render(done(i + 1)))
				os.Exit(1)
			}
		} else if f.until != "" {
			if strings.Contains(strings.ToLower(ser.String()), strings.ToLower(f.until)) {
				fmt.Println(passStyle.Render("matched: " + f.until))
				fmt.Println(infoStyle.Render(done(i + 1)))
				return nil
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Println(failStyle.Render("TIMEOUT"))
			fmt.Println(infoStyle.Render(done(i + 1)))
			os.Exit(2)
		}
	}
	fmt.Println(infoStyle.Render(done(f.steps)))
	return nil
}
