// Command pvcons attaches the local terminal to a paravirtual console. With
// a config file it drives a real shared page and event channel; with
// -loopback it runs against an in-memory page and an echo peer, which is
// useful for trying the stack without a hypervisor.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/protoben/pvcons/internal/console"
	"github.com/protoben/pvcons/internal/frame"
	"github.com/protoben/pvcons/internal/peer"
	"github.com/protoben/pvcons/internal/port"
	"github.com/protoben/pvcons/internal/ring"
)

// detachKey ends the session: Ctrl-].
const detachKey = 0x1d

type config struct {
	// Frame is the machine frame number of the shared console page.
	Frame uint64 `yaml:"frame"`

	// Device is the mapping device node the frame is reachable through.
	Device string `yaml:"device"`

	// EventfdRx and EventfdTx are the inherited event channel descriptors.
	EventfdRx int `yaml:"eventfd_rx"`
	EventfdTx int `yaml:"eventfd_tx"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pvcons: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config with frame, device and eventfd settings")
	loopback := flag.Bool("loopback", false, "Attach to an in-memory echo console instead of a real one")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -config FILE | -loopback\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Attach the local terminal to a paravirtual console. Ctrl-] detaches.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cons *console.Console
	switch {
	case *loopback:
		c, err := attachLoopback()
		if err != nil {
			return err
		}
		cons = c
	case *configPath != "":
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		c, err := attachReal(cfg)
		if err != nil {
			return err
		}
		cons = c
	default:
		flag.Usage()
		return fmt.Errorf("either -config or -loopback is required")
	}

	return session(cons)
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Frame == 0 {
		return nil, fmt.Errorf("config %s: frame is required", path)
	}
	return &cfg, nil
}

// attachLoopback wires a console and an echoing peer to the same in-memory
// page.
func attachLoopback() (*console.Console, error) {
	const loopFrame = 1

	page := ring.NewPage()
	mapper := frame.NewSliceMapper()
	mapper.Register(loopFrame, page, false)

	guestPort, hostPort := port.Pair()

	pr, err := peer.New(page, hostPort)
	if err != nil {
		return nil, fmt.Errorf("loopback peer: %w", err)
	}
	pr.SetOnOutput(func(data []byte) { pr.SendInput(data) })
	pr.Start()

	slog.Debug("attached loopback console")
	return console.Init(loopFrame, guestPort, mapper)
}

// session pumps stdin into the console and console reads onto stdout until
// the detach key or stdin EOF.
func session(cons *console.Console) error {
	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		state, err := term.MakeRaw(stdin)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(stdin, state)
	}

	go func() {
		for {
			os.Stdout.Write(cons.Read(1))
		}
	}()

	buf := make([]byte, 256)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for i, c := range chunk {
				if c == detachKey {
					if i > 0 {
						cons.Write(string(chunk[:i]))
					}
					return nil
				}
			}
			cons.Write(string(chunk))
		}
		if err != nil {
			return nil
		}
	}
}
