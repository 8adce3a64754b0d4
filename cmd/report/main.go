package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"dosecast/pkg/analysis"
	"dosecast/pkg/colormap"
	"dosecast/pkg/config"
	"dosecast/pkg/dicom"
	"dosecast/pkg/dose"
	"dosecast/pkg/raycast"
	"dosecast/pkg/storage"
	"dosecast/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "dosecast.yaml", "Configuration file (defaults are used if it does not exist)")
	inputPath := flag.String("input", "", "RTDose DICOM file to report on")
	outputDir := flag.String("output-dir", "", "Directory for the report images (overrides report.outputDir)")
	size := flag.Int("size", 0, "Width and height of each image in pixels")
	numCores := flag.Int("cores", 0, "Number of CPU cores to render with")
	extractSlices := flag.Bool("extract-slices", false, "Also save colormapped dose slices along all axes")
	upload := flag.Bool("upload", false, "Upload the images to the configured bucket")
	flag.Parse()

	if *inputPath == "" && flag.NArg() > 0 {
		*inputPath = flag.Arg(0)
	}
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Supply an input file")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	rp := &cfg.Report
	if *outputDir != "" {
		rp.OutputDir = *outputDir
	}
	if *size > 0 {
		rp.Size = *size
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}
	verbose := cfg.Output.Verbose

	vol, err := dicom.OpenVolume(*inputPath, cfg.Processing.MaxVoxels, verbose)
	if err != nil {
		log.Fatalf("Could not load the DICOM file at %s: %v", *inputPath, err)
	}

	// Statistics cover the whole grid, before cropping
	stats, err := analysis.Summarize(vol, rp.Compaction)
	if err != nil {
		log.Printf("Warning: Failed to compute dose statistics: %v", err)
	} else {
		fmt.Println("\nDose statistics:")
		fmt.Println("================")
		fmt.Println(stats)
	}

	if err := vol.Compact(rp.Compaction); err != nil {
		log.Printf("Warning: Cannot compact the dose: %v", err)
	}
	if vol.Empty() {
		log.Fatalf("No dose above %.1f%% of the maximum", rp.Compaction*100)
	}

	kind, err := colormap.ParseKind(cfg.Display.Colormap)
	if err != nil {
		log.Fatalf("Invalid colormap: %v", err)
	}
	cmap, err := colormap.New(kind, vol.DMax())
	if err != nil {
		log.Fatalf("Invalid colormap: %v", err)
	}
	interp, err := dose.ParseInterpolation(cfg.Processing.Interpolation)
	if err != nil {
		log.Fatalf("Invalid interpolation: %v", err)
	}
	rend := &raycast.Renderer{Workers: cfg.Processing.NumCores, Interp: interp}
	screen := raycast.Screen{Width: rp.Size, Height: rp.Size, FOV: rp.FOV}

	if err := os.MkdirAll(rp.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	startTime := time.Now()
	var written []string
	for _, view := range visualization.ReportViews {
		cam := view.Place(vol, rp.FOV)
		img, err := visualization.RenderView(rend, vol, cmap, cam, screen, cfg.Display.Supersample)
		if err != nil {
			log.Fatalf("Failed to render %s: %v", view.Name, err)
		}
		path := filepath.Join(rp.OutputDir, view.Name+".jpg")
		if err := visualization.SaveFrame(img, path, rp.Quality); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("Saved %s\n", path)
		written = append(written, path)
	}
	fmt.Printf("Rendered %d views in %.2f seconds\n", len(written), time.Since(startTime).Seconds())

	if *extractSlices {
		fmt.Println("\nExtracting dose slices along all axes...")
		viewer := visualization.NewViewer(vol, cmap)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(rp.OutputDir, "slices", axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
		fmt.Println("Slice extraction completed!")
	}

	if *upload {
		u, err := storage.New(cfg)
		if err != nil {
			log.Fatalf("Failed to set up storage: %v", err)
		}
		if _, ok := u.(storage.Disabled); ok {
			log.Printf("Warning: -upload given but storage.bucket is not configured")
		}
		if err := storage.UploadFiles(context.Background(), u, written...); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
	}
}
