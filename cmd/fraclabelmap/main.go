package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/config"
	"fraclabelmap/pkg/reconstruction"
	"fraclabelmap/pkg/visualization"
)

// parameterFlags collects repeated -param "Name=value" overrides.
type parameterFlags map[string]string

func (p parameterFlags) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p parameterFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected Name=value, got %q", s)
	}
	p[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

// parseExtent reads "i0,i1,j0,j1,k0,k1" voxel index bounds.
func parseExtent(s string) (models.Extent, error) {
	var e models.Extent
	fields := strings.Split(s, ",")
	if len(fields) != len(e) {
		return e, fmt.Errorf("expected 6 comma separated indices, got %q", s)
	}
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return e, fmt.Errorf("invalid index %q: %v", f, err)
		}
		e[i] = v
	}
	return e, nil
}

func primitive(name string) (*models.Mesh, error) {
	switch name {
	case "sphere":
		return models.NewUVSphere(r3.Vec{}, 10, 32, 64), nil
	case "cube":
		return models.NewBox(r3.Vec{X: -8, Y: -8, Z: -8}, r3.Vec{X: 8, Y: 8, Z: 8}), nil
	default:
		return nil, fmt.Errorf("unknown primitive %q (must be sphere or cube)", name)
	}
}

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Closed surface to convert, in STL format")
	primitiveName := flag.String("primitive", "", "Convert a built-in surface instead of a file: sphere or cube")
	configPath := flag.String("config", "config.yaml", "Configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	outputFile := flag.String("output", "output.stl", "Output STL filename")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: processing.numCores)")
	extractSlices := flag.Bool("extract-slices", false, "Save the fractional labelmap slices along all axes")
	slicesDir := flag.String("slices-dir", "labelmap_slices", "Directory to save extracted slices")
	region := flag.String("region", "", `Restrict extracted slices to the voxels "i0,i1,j0,j1,k0,k1"`)
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	overrides := parameterFlags{}
	flag.Var(overrides, "param", `Conversion parameter override "Name=value", may be repeated`)
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var surface *models.Mesh
	switch {
	case *primitiveName != "":
		if surface, err = primitive(*primitiveName); err != nil {
			log.Fatalf("%v", err)
		}
	case *inputFile == "":
		flag.Usage()
		os.Exit(1)
	}

	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	parameters := cfg.ConversionParameters()
	for name, value := range overrides {
		parameters[name] = value
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	fmt.Println("================================")
	fmt.Println("CLOSED SURFACE <-> FRACTIONAL LABELMAP ROUND TRIP")
	fmt.Println("================================")

	params := &reconstruction.Params{
		InputFile:               *inputFile,
		Surface:                 surface,
		OutputFile:              *outputFile,
		NumCores:                cfg.Processing.NumCores,
		Parameters:              parameters,
		DefaultResolution:       cfg.Conversion.DefaultResolution,
		MaxVoxels:               cfg.Conversion.MaxVoxels,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         *intermediaryDir,
		HistogramOrigin:         cfg.Metrics.HistogramOrigin,
		HistogramSpacing:        cfg.Metrics.HistogramSpacing,
		HistogramBins:           cfg.Metrics.HistogramBins,
		Logger:                  logger,
	}

	reconstructor := reconstruction.NewReconstructor(params)

	fmt.Println("Starting conversion...")
	startTime := time.Now()
	if err := reconstructor.Process(); err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	metrics := reconstructor.GetMetrics()
	fmt.Printf("\nRound trip completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output surface saved to: %s\n\n", *outputFile)

	labelmap := reconstructor.GetLabelmap()
	fmt.Println("Fractional labelmap:")
	fmt.Println("====================")
	fmt.Printf("Extent: %v\n", labelmap.Extent)
	fmt.Printf("Spacing: %.4g x %.4g x %.4g\n", labelmap.Spacing().X, labelmap.Spacing().Y, labelmap.Spacing().Z)
	fmt.Printf("Scalar range: [%g, %g], threshold %g\n\n", labelmap.ScalarRange[0], labelmap.ScalarRange[1], labelmap.Threshold)

	fmt.Println("Validation Metrics:")
	fmt.Println("===================")
	fmt.Print(metrics)

	hist := metrics.DistanceHistogram
	fmt.Println("\nSigned distance histogram (reconstructed to original):")
	for i, n := range hist.Counts {
		if n > 0 {
			fmt.Printf("  %+.3f: %d\n", hist.BinCenter(i), n)
		}
	}
	if hist.Outside > 0 {
		fmt.Printf("  outside: %d\n", hist.Outside)
	}

	if *extractSlices {
		fmt.Println("\nExtracting fractional labelmap slices along all axes...")
		viewer := visualization.NewViewer(labelmap)
		if *region != "" {
			sub, err := parseExtent(*region)
			if err != nil {
				log.Fatalf("Invalid -region: %v", err)
			}
			cropped, err := viewer.ExtractRegion(sub)
			if err != nil {
				log.Fatalf("Failed to extract region: %v", err)
			}
			fmt.Printf("Restricting slices to region %v\n", sub)
			viewer = visualization.NewViewer(cropped)
		}
		viewer.Magnification = 4

		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(*slicesDir, axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}

		fmt.Println("Slice extraction completed!")
	}

	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", *intermediaryDir)
		fmt.Println("- 01_fractional_labelmap: Fractional labelmap Z slices")
	}
}
