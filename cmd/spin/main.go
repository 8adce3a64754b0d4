package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"time"

	"dosecast/pkg/analysis"
	"dosecast/pkg/colormap"
	"dosecast/pkg/config"
	"dosecast/pkg/dicom"
	"dosecast/pkg/dose"
	"dosecast/pkg/raycast"
	"dosecast/pkg/rcmath"
	"dosecast/pkg/storage"
	"dosecast/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "dosecast.yaml", "Configuration file (defaults are used if it does not exist)")
	inputPath := flag.String("input", "", "RTDose DICOM file to spin")
	output := flag.String("output", "", "Output GIF (overrides spin.output)")
	angle := flag.Float64("angle", -1, "Colatitude of the orbit in degrees from +z")
	dist := flag.Float64("dist", -1, "Distance from the orbit centre in mm")
	fov := flag.Float64("fov", 0, "Horizontal field of view in degrees")
	frames := flag.Int("frames", 0, "Number of frames in one revolution")
	frameTime := flag.Int("time", -1, "Delay between frames in milliseconds")
	width := flag.Int("width", 0, "Frame width in pixels")
	height := flag.Int("height", 0, "Frame height in pixels")
	numCores := flag.Int("cores", 0, "Number of CPU cores to render with")
	upload := flag.Bool("upload", false, "Upload the animation to the configured bucket")
	flag.Parse()

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

	// Command line values replace the configured ones
	sp := &cfg.Spin
	if *output != "" {
		sp.Output = *output
	}
	if *angle >= 0 {
		sp.Colatitude = *angle
	}
	if *dist >= 0 {
		sp.Distance = *dist
	}
	if *fov > 0 {
		sp.FOV = *fov
	}
	if *frames > 0 {
		sp.Frames = *frames
	}
	if *frameTime >= 0 {
		sp.FrameTime = *frameTime
	}
	if *width > 0 {
		sp.Width = *width
	}
	if *height > 0 {
		sp.Height = *height
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
		log.Fatalf("Couldn't load dose file at %s: %v", *inputPath, err)
	}
	if err := vol.Compact(sp.Compaction); err != nil {
		log.Printf("Warning: Couldn't compact the dose: %v", err)
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
	screen := raycast.Screen{Width: sp.Width, Height: sp.Height, FOV: sp.FOV}

	delay := sp.FrameTime
	if delay == 0 {
		delay = 1000 / sp.Frames
	}

	centre := vol.Centroid().Add(rcmath.Tangent(sp.Offset[0], sp.Offset[1], sp.Offset[2]))
	cam := visualization.OrbitCamera()
	anim := visualization.NewAnimation()

	fmt.Printf("Rendering %d frames of %dx%d around (%.1f, %.1f, %.1f)...\n",
		sp.Frames, sp.Width, sp.Height, centre[rcmath.X], centre[rcmath.Y], centre[rcmath.Z])
	startTime := time.Now()

	var prev image.Image
	for i := 0; i < sp.Frames; i++ {
		visualization.Orbit(&cam, centre, sp.Colatitude, sp.Distance, i, sp.Frames)
		img, err := visualization.RenderView(rend, vol, cmap, cam, screen, cfg.Display.Supersample)
		if err != nil {
			log.Fatalf("Failed to render frame %d: %v", i, err)
		}
		if verbose && prev != nil {
			if m, err := analysis.CompareFrames(prev, img); err == nil {
				fmt.Printf("Frame %d: RMSE %.2f, SSIM %.3f from previous\n", i, m.RMSE, m.SSIM)
			}
		}
		anim.AddFrame(img, delay)
		prev = img
	}

	if err := anim.Save(sp.Output); err != nil {
		log.Fatalf("Failed to save animation: %v", err)
	}
	fmt.Printf("Saved %d frames to %s in %.2f seconds\n", anim.Len(), sp.Output, time.Since(startTime).Seconds())

	if *upload {
		u, err := storage.New(cfg)
		if err != nil {
			log.Fatalf("Failed to set up storage: %v", err)
		}
		if _, ok := u.(storage.Disabled); ok {
			log.Printf("Warning: -upload given but storage.bucket is not configured")
		}
		if err := storage.UploadFiles(context.Background(), u, sp.Output); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
	}
}
