package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"engbench/engine"
	"engbench/host/bench"
	"engbench/host/scope"
	"engbench/host/trace"
)

var (
	list      = flag.Bool("list", false, "List the registered engine configurations")
	config    = flag.String("config", "i6-60m2", "Engine configuration name")
	width     = flag.Int("width", 16, "Sample width in bits (8, 16 or 32)")
	out       = flag.String("out", "", "Write the generated train to this file")
	format    = flag.String("format", "raw", "Output format: raw or vcd")
	device    = flag.String("device", "", "Serial device path; streams to a playback device")
	baud      = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	rpm       = flag.Int("rpm", 3000, "Engine speed in rpm")
	scopeAddr = flag.String("scope", "", "Serve a browser preview on this address (e.g. :8086)")
)

func main() {
	flag.Parse()

	registry := engine.DefaultRegistry()

	switch {
	case *list:
		listConfigs(registry)

	case *scopeAddr != "":
		server := scope.New(scope.Config{Addr: *scopeAddr, Registry: registry})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: scope server: %v\n", err)
			os.Exit(1)
		}

	case *device != "":
		if err := runStream(registry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case *out != "":
		if err := exportTrain(registry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listConfigs(registry *engine.Registry) {
	for _, name := range registry.Names() {
		cfg, _ := registry.Get(name)
		wheel := fmt.Sprintf("%d-%d", cfg.Crk.Teeth, cfg.Crk.Missing)
		if cfg.Crk.Inverted {
			wheel += " inverted"
		}
		fmt.Printf("%-12s %d cylinders, crank %s, TDC0 at %d.%d deg\n",
			name, cfg.Cylinders, wheel, cfg.RefToTDC0/10, cfg.RefToTDC0%10)
	}
}

// exportTrain generates the selected configuration and writes it in the
// requested format and width.
func exportTrain(registry *engine.Registry) error {
	cfg, ok := registry.Get(*config)
	if !ok {
		return fmt.Errorf("unknown config %q (use -list)", *config)
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()

	switch *width {
	case 8:
		var train [engine.TrainLen]uint8
		engine.Generate(cfg, &train)
		err = writeTrain(f, cfg, &train)
	case 16:
		var train [engine.TrainLen]uint16
		engine.Generate(cfg, &train)
		err = writeTrain(f, cfg, &train)
	case 32:
		var train [engine.TrainLen]uint32
		engine.Generate(cfg, &train)
		err = writeTrain(f, cfg, &train)
	default:
		return fmt.Errorf("width must be 8, 16 or 32, got %d", *width)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s train for %s to %s\n", *format, *config, *out)
	return nil
}

func writeTrain[W engine.Word](f *os.File, cfg *engine.Config, train *[engine.TrainLen]W) error {
	switch *format {
	case "raw":
		return trace.WriteRaw(f, train)
	case "vcd":
		if *rpm <= 0 {
			return fmt.Errorf("rpm must be positive for vcd export")
		}
		return trace.WriteVCD(f, train, cfg.Cylinders, uint32(*rpm)*60)
	default:
		return fmt.Errorf("format must be raw or vcd, got %q", *format)
	}
}

// runStream uploads the selected train to a playback device and drops
// into an interactive control loop.
func runStream(registry *engine.Registry) error {
	cfg, ok := registry.Get(*config)
	if !ok {
		return fmt.Errorf("unknown config %q (use -list)", *config)
	}

	fmt.Printf("Connecting to playback device on %s...\n", *device)
	client, err := bench.Connect(*device, *baud)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	info, err := client.Identify()
	if err != nil {
		return fmt.Errorf("failed to identify device: %w", err)
	}
	fmt.Printf("Connected: version %s, train length %d, max width %d bytes\n",
		info.Version, info.TrainLen, info.MaxWidth)

	var train [engine.TrainLen]uint16
	engine.Generate(cfg, &train)
	fmt.Printf("Uploading %s...\n", *config)
	if err := bench.Upload(client, &train); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if err := client.SetRPM(*rpm); err != nil {
		return err
	}
	fmt.Printf("Upload verified, speed set to %d rpm\n", *rpm)

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "quit", "exit", "q":
			client.Stop()
			fmt.Println("Goodbye!")
			return nil

		case "help", "?":
			printHelp()

		case "start":
			if err := client.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Println("Playback started")
			}

		case "stop":
			if err := client.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Println("Playback stopped")
			}

		case "rpm":
			if len(parts) != 2 {
				fmt.Println("Usage: rpm <value>")
				continue
			}
			value, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Printf("Bad rpm value: %s\n", parts[1])
				continue
			}
			if err := client.SetRPM(value); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Printf("Speed set to %d rpm\n", value)
			}

		case "status":
			status, err := client.Status()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			state := "stopped"
			if status.Running {
				state = "running"
			}
			fmt.Printf("%s, %d samples/s, %d samples loaded, train crc %#04x\n",
				state, status.Rate, status.Loaded, status.CRC)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  start          - Start cyclic playback")
	fmt.Println("  stop           - Stop playback")
	fmt.Println("  rpm <value>    - Change the emulated engine speed")
	fmt.Println("  status         - Query the device state")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}
