// main.go - dreamcast CLI entry point (spec.md §6's "external
// interfaces"/"CLI surface").
//
// Grounded on the teacher's main.go: a single positional program
// argument followed by flag-style options, host peripherals wired up
// before execution starts, execution driven on its own goroutine while
// the host's presentation loop owns the main thread. What changes:
// the teacher's CPU-mode switch (-ie32/-m68k) becomes a positional
// disc/.bin/.trace path plus name=value options (spec.md §6), and the
// GTK4 GUI frontend is replaced by hostadapter's ebiten-backed video
// output wired through dreamcast.Machine instead of a raw SystemBus.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/intuitionamiga/dreamcast"
	"github.com/intuitionamiga/dreamcast/audiosink"
)

const (
	defaultWidth  = 640
	defaultHeight = 480

	// binLoadAddr is main RAM plus the IP.BIN bootstrap's reserved
	// size, the convention spec.md §6 uses for a raw ".bin" argument.
	binLoadAddr = dreamcast.MainRAMBase + 0x10000
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dreamcast <disc.gdi|disc.cdi|disc.chd|program.bin|trace.trace> [name=value ...]")
	fmt.Fprintln(os.Stderr, "  known options: scale=N controllers=N pal=true log=debug|info|warning|fatal config=path")
}

// options holds the parsed name=value CLI arguments (spec.md §6,
// "unrecognized options are rejected").
type options struct {
	scale       int
	controllers int
	pal         bool
	logLevel    dreamcast.Severity
	configPath  string
}

func defaultOptions() options {
	return options{scale: 2, controllers: 1, logLevel: dreamcast.SeverityInfo}
}

func parseOptions(args []string) (options, error) {
	opt := defaultOptions()
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return opt, fmt.Errorf("malformed option %q, want name=value", arg)
		}
		switch name {
		case "scale":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return opt, fmt.Errorf("scale: invalid value %q", value)
			}
			opt.scale = n
		case "controllers":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return opt, fmt.Errorf("controllers: invalid value %q", value)
			}
			opt.controllers = n
		case "pal":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return opt, fmt.Errorf("pal: invalid value %q", value)
			}
			opt.pal = b
		case "log":
			sev, ok := parseSeverity(value)
			if !ok {
				return opt, fmt.Errorf("log: unknown level %q", value)
			}
			opt.logLevel = sev
		case "config":
			opt.configPath = value
		default:
			return opt, fmt.Errorf("unrecognized option %q", name)
		}
	}
	return opt, nil
}

func parseSeverity(s string) (dreamcast.Severity, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return dreamcast.SeverityDebug, true
	case "info":
		return dreamcast.SeverityInfo, true
	case "warning":
		return dreamcast.SeverityWarning, true
	case "fatal":
		return dreamcast.SeverityFatal, true
	default:
		return 0, false
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	path := os.Args[1]
	opt, err := parseOptions(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dreamcast: %v\n", err)
		usage()
		os.Exit(1)
	}

	log := dreamcast.NewLogger(opt.logLevel)

	if strings.HasSuffix(path, ".trace") {
		if err := runTraceFile(path, log); err != nil {
			log.Fatalf("main", "trace replay failed: %v", err)
		}
		return
	}

	video, startVideo := newVideoBackend(defaultWidth, defaultHeight, opt.scale)
	audio, err := newHostAudio(audioLowWaterFrames)
	if err != nil {
		log.Fatalf("main", "audio init failed: %v", err)
	}
	input := newHostInput(0)

	m := dreamcast.NewMachine(dreamcast.MachineOptions{
		Log:             log,
		RenderBackend:   video,
		ControllerCount: opt.controllers,
		PAL:             opt.pal,
	})

	if opt.configPath != "" {
		loadControllerProfile(m, opt.configPath, log)
	}

	switch {
	case strings.HasSuffix(path, ".bin"):
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("main", "reading %s: %v", path, err)
		}
		m.LoadBinary(binLoadAddr, data)
	case strings.HasSuffix(path, ".gdi"), strings.HasSuffix(path, ".cdi"), strings.HasSuffix(path, ".chd"):
		log.Fatalf("main", "disc image parsing (%s) is out of scope; attach a dreamcast.Disc via GDROM.AttachDisc from your own driver instead", path)
	default:
		log.Fatalf("main", "unrecognized input %q: expected .bin, .trace, .gdi, .cdi, or .chd", path)
	}

	if err := startVideo(fmt.Sprintf("Dreamcast - %s", path)); err != nil {
		log.Fatalf("main", "video start failed: %v", err)
	}

	// The render thread (spec.md §5) runs independently of the core
	// thread, lazily taking ownership of whatever tile context the TA
	// last handed off.
	go func() {
		for {
			m.RenderPendingFrame(16 * time.Millisecond)
		}
	}()

	runMachine(m, input, audio)
}

// audioLowWaterFrames is the core thread's pacing threshold (spec.md
// §5: "paced by audio_buffer_low()... has less than the configured
// low-water mark of samples queued").
const audioLowWaterFrames = 2048

// coreSliceNS is one core-thread tick's worth of virtual time; kept
// small so the audio sink's low-water mark gates playback smoothly
// rather than in large, audibly uneven bursts.
const coreSliceNS = uint64(2 * time.Millisecond)

// runMachine is the core thread (spec.md §5): it only advances virtual
// time while the audio sink is below its low-water mark, pumping host
// input and pushing one slice's worth of samples each iteration. The
// AICA coprocessor's own channel-mixing DSP is stubbed (spec.md's
// Non-goals exclude bit-exact audio DSP and note the original source's
// AICA DSP is itself largely stubbed), so the slice pushed is silence;
// what this loop demonstrates is the sink-driven pacing contract, not
// wavetable synthesis.
func runMachine(m *dreamcast.Machine, input dreamcast.InputSource, audio audiosink.Sink) {
	frames := int(audiosink.SampleRate * coreSliceNS / uint64(time.Second))
	silence := make([]int16, frames*2)

	for {
		if !audio.BufferLow() {
			time.Sleep(time.Millisecond)
			continue
		}
		m.PumpInput(input)
		m.Tick(coreSliceNS)
		audio.Push(silence, frames)
	}
}

// loadControllerProfile applies a [controller] key binding section to
// every attached pad; a missing or unreadable file is a warning, not a
// fatal error, matching ParseConfig's own tolerant-parse contract.
func loadControllerProfile(m *dreamcast.Machine, path string, log *dreamcast.Logger) {
	f, err := os.Open(path)
	if err != nil {
		log.Warningf("main", "config: %v", err)
		return
	}
	defer f.Close()

	cfg := dreamcast.ParseConfig(f, log)
	for _, c := range m.Maple.Controllers {
		c.LoadProfile(cfg, log)
	}
}

func runTraceFile(path string, log *dreamcast.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	printDivider()
	err = dreamcast.RunTrace(f, os.Stdout, log)
	printDivider()
	return err
}

// printDivider draws a separator sized to the controlling terminal's
// width, falling back to 80 columns when stdout isn't one (piped
// output, CI logs).
func printDivider() {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	fmt.Println(strings.Repeat("-", width))
}
