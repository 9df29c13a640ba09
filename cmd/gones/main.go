// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"nesemu/internal/config"
	"nesemu/internal/nes/bus"
	"nesemu/internal/nes/cartridge"
	"nesemu/internal/nes/savestate"
	"nesemu/internal/version"
	"nesemu/internal/video"
)

func main() {
	var (
		romFile       = flag.String("rom", "", "Path to NES ROM file (required)")
		configFile    = flag.String("config", "", "Path to configuration file")
		saveDataFile  = flag.String("savedata-file", "", "Path to a battery-RAM save file to load from and persist to")
		saveStateFile = flag.String("savestate", "", "Save state file to resume from")
		scale         = flag.Int("scale", 3, "Window scale factor")
		debug         = flag.Bool("debug", false, "Enable verbose (-v=2 equivalent) logging")
		paused        = flag.Bool("paused", false, "Start the emulator paused")
		muted         = flag.Bool("muted", false, "Start the emulator muted")
		showVersion   = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetDetailedVersion())
		return
	}

	if *romFile == "" {
		printUsage()
		os.Exit(2)
	}

	if *debug {
		flag.Set("v", "2")
	}
	defer glog.Flush()

	configPath := *configFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		glog.Exitf("gones: loading config %s: %v", configPath, err)
	}
	if *paused {
		cfg.Paused = true
	}
	if *muted {
		cfg.Muted = true
	}

	var battery []uint8
	if *saveDataFile != "" {
		if data, err := os.ReadFile(*saveDataFile); err == nil {
			battery = data
		} else if !os.IsNotExist(err) {
			glog.Exitf("gones: reading battery save %s: %v", *saveDataFile, err)
		}
	}

	cart, err := cartridge.LoadFromFile(*romFile, battery)
	if err != nil {
		glog.Exitf("gones: loading ROM %s: %v", *romFile, err)
	}

	machine := bus.New()
	machine.LoadCartridge(cart)

	if *saveStateFile != "" {
		if err := savestate.ReadFile(*saveStateFile, machine); err != nil {
			glog.Exitf("gones: loading save state %s: %v", *saveStateFile, err)
		}
		glog.Infof("gones: resumed from save state %s", *saveStateFile)
	}

	backend := video.NewBackend(fmt.Sprintf("gones - %s", *romFile), *scale, cfg.Player1, cfg.Player2)

	stop := make(chan struct{})
	go waitForShutdown(stop, cart, *saveDataFile)

	run(machine, backend, cfg, stop)
	persistBattery(cart, *saveDataFile)
}

// run starts the emulator's frame loop in a goroutine, which runs until
// the backend reports ShouldClose or stop is closed, and meanwhile blocks
// on the backend's own event loop via Run so Update/Draw get called per
// the host windowing system's own pacing.
func run(machine *bus.Machine, backend *video.Backend, cfg *config.Config, stop <-chan struct{}) {
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if backend.ShouldClose() {
				return
			}
			if !cfg.Paused {
				machine.AdvanceFrame()
				backend.Present(machine.PPU.FrameBuffer())
			}
			input := backend.PollInput()
			machine.SetButtons(0, input[0])
			machine.SetButtons(1, input[1])
		}
	}()

	if err := backend.Run(); err != nil {
		glog.Errorf("gones: video backend exited: %v", err)
	}
}

// persistBattery copies the cartridge's battery-backed PRG RAM (if any)
// to path, per spec.md §1's "host must obtain it by copying the slice
// exposed by the cartridge and write it atomically" — written to a
// temporary file in the same directory and renamed into place.
func persistBattery(cart *cartridge.Cartridge, path string) {
	if path == "" {
		return
	}
	ram := cart.BatteryRAM()
	if ram == nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, ram, 0o644); err != nil {
		glog.Errorf("gones: writing battery save %s: %v", tmp, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		glog.Errorf("gones: committing battery save %s: %v", path, err)
	}
}

// waitForShutdown closes stop on SIGINT/SIGTERM so the frame-advance
// goroutine above can unwind before the process exits.
func waitForShutdown(stop chan struct{}, cart *cartridge.Cartridge, saveDataFile string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	glog.Infof("gones: interrupt received, shutting down")
	persistBattery(cart, saveDataFile)
	close(stop)
	os.Exit(0)
}

func printUsage() {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones -rom <file> [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS:")
	fmt.Println("  Bindings come from the config file's player1/player2 key maps")
	fmt.Println("  (./config/gones.json by default); Escape closes the window.")
}
