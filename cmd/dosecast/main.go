package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dosecast/pkg/config"
	"dosecast/pkg/dicom"
	"dosecast/pkg/server"
	"dosecast/pkg/session"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "dosecast.yaml", "Configuration file (defaults are used if it does not exist)")
	inputPath := flag.String("input", "", "RTDose DICOM file to view")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to render with (overrides processing.numCores)")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *inputPath == "" && flag.NArg() > 0 {
		*inputPath = flag.Arg(0)
	}
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	verbose := cfg.Output.Verbose

	if verbose {
		fmt.Println("================================")
		fmt.Println("DOSECAST: INTERACTIVE MAXIMUM-INTENSITY PROJECTION OF RTDOSE FILES")
		fmt.Println("================================")
	}

	vol, err := dicom.OpenVolume(*inputPath, cfg.Processing.MaxVoxels, verbose)
	if err != nil {
		log.Fatalf("Couldn't load dose file at %s: %v", *inputPath, err)
	}
	if err := vol.Compact(cfg.Processing.CompactThreshold); err != nil {
		log.Printf("Warning: Couldn't compact the dose: %v", err)
	}

	set, err := session.SettingsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid display settings: %v", err)
	}
	sess, err := session.New(vol, set)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	opts, err := server.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid server settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(sess, opts).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	fmt.Println("Viewer stopped")
}
