package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aidan3e4/vibecast/pkg/config"
	"github.com/aidan3e4/vibecast/pkg/fisheye"
	"github.com/aidan3e4/vibecast/pkg/imgio"
	"github.com/aidan3e4/vibecast/pkg/prompts"
	"github.com/aidan3e4/vibecast/pkg/vision"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Fisheye source image (JPEG or PNG)")
	outputDir := flag.String("output", "unwarped", "Directory to write the output views")
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	fov := flag.Float64("fov", 90, "Horizontal field of view of the cardinal views in degrees")
	viewAngle := flag.Float64("view-angle", 45, "Downward elevation of the cardinal views in degrees")
	width := flag.Int("width", 1080, "Output view width in pixels")
	height := flag.Int("height", 810, "Output view height in pixels")
	belowFraction := flag.Float64("below-fraction", 0.6, "Fraction of the fisheye radius covered by the Below view")
	rotate := flag.Float64("rotate", 0, "Rotate the source image by this angle instead of unwarping")
	viewList := flag.String("views", "", "Comma-separated views to write (N,E,S,W,B); default all")
	analyze := flag.Bool("analyze", false, "Analyze the selected views with the vision model")
	promptOverride := flag.String("prompt", "", "Override the analysis prompt")
	modelOverride := flag.String("model", "", "Override the analysis model")
	promptsDir := flag.String("prompts-dir", "prompts", "Local prompt directory")
	flag.Parse()

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	src, err := imgio.Load(*inputPath)
	if err != nil {
		log.Fatalf("Failed to load input image: %v", err)
	}

	stem := strings.TrimSuffix(filepath.Base(*inputPath), filepath.Ext(*inputPath))

	// Rotation mode writes a single image and exits
	if *rotate != 0 {
		rotated := imgio.Rotate(src, *rotate)
		outPath := filepath.Join(*outputDir, fmt.Sprintf("%s_rotated.jpg", stem))
		if err := imgio.Save(rotated, outPath); err != nil {
			log.Fatalf("Failed to save rotated image: %v", err)
		}
		fmt.Printf("Rotated image saved to: %s\n", outPath)
		return
	}

	wanted, err := selectViews(*viewList)
	if err != nil {
		log.Fatalf("Invalid view selection: %v", err)
	}

	opts := fisheye.Options{
		FOV:           *fov,
		OutputWidth:   *width,
		OutputHeight:  *height,
		ViewAngle:     *viewAngle,
		BelowFraction: *belowFraction,
	}

	fmt.Printf("Unwarping %s (%dx%d views, FOV %g, view angle %g)...\n",
		*inputPath, *width, *height, *fov, *viewAngle)
	startTime := time.Now()

	views, err := fisheye.RoomViews(src, opts)
	if err != nil {
		log.Fatalf("Unwarping failed: %v", err)
	}

	saved := 0
	for _, name := range fisheye.AllViews() {
		if _, ok := wanted[name]; !ok {
			continue
		}
		outPath := filepath.Join(*outputDir, fmt.Sprintf("%s_%s.jpg", stem, strings.ToLower(string(name))))
		if err := imgio.Save(views[name], outPath); err != nil {
			log.Fatalf("Failed to save %s view: %v", name, err)
		}
		fmt.Printf("Saved %s view to: %s\n", name, outPath)
		saved++
	}

	fmt.Printf("Wrote %d views in %.2f seconds\n", saved, time.Since(startTime).Seconds())

	if *analyze {
		analyzeViews(cfg, views, wanted, stem, *outputDir, *promptOverride, *modelOverride, *promptsDir)
	}
}

// analyzeViews runs the vision model over the selected views and writes the
// parsed analyses next to the images.
func analyzeViews(cfg *config.Config, views fisheye.ViewCollection, wanted map[fisheye.ViewName]struct{}, stem, outputDir, promptOverride, modelOverride, promptsDir string) {
	ctx := context.Background()

	secrets := vision.ChainSource{vision.EnvSource{}}
	if cfg.LLM.SecretName != "" {
		sms, err := vision.NewSecretsManagerSource(cfg.Storage.Region, cfg.LLM.SecretName)
		if err != nil {
			log.Fatalf("Failed to create secrets source: %v", err)
		}
		secrets = append(secrets, sms)
	}
	client := vision.NewClient(secrets, nil)

	model := modelOverride
	if model == "" {
		model = cfg.LLM.Model
	}

	prompt := promptOverride
	if prompt == "" {
		var remote prompts.Store
		if cfg.Storage.ResultsBucket != "" {
			s3Store, err := prompts.NewS3Store(cfg.Storage.Region, cfg.Storage.ResultsBucket, cfg.Storage.PromptsPrefix)
			if err != nil {
				log.Printf("Warning: remote prompt store unavailable: %v", err)
			} else {
				remote = s3Store
			}
		}
		store := prompts.NewMergedStore(remote, prompts.NewLocalStore(promptsDir))
		if text, _, err := store.Latest(ctx, cfg.LLM.PromptName); err == nil {
			prompt = text
		} else {
			prompt = prompts.GetDefault(ctx, nil)
		}
	}

	fmt.Printf("Analyzing views with %s...\n", model)
	analyses := make(map[string]map[string]interface{})
	for _, name := range fisheye.AllViews() {
		if _, ok := wanted[name]; !ok {
			continue
		}
		b64, err := imgio.ToBase64(views[name])
		if err != nil {
			log.Fatalf("Failed to encode %s view: %v", name, err)
		}
		doc, err := client.Analyze(ctx, b64, prompt, model)
		if err != nil {
			log.Fatalf("Analysis of %s view failed: %v", name, err)
		}
		analyses[string(name)] = doc
		fmt.Printf("Analyzed %s view\n", name)
	}

	outPath := filepath.Join(outputDir, fmt.Sprintf("%s_analysis.json", stem))
	data, err := json.MarshalIndent(analyses, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode analyses: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		log.Fatalf("Failed to save analyses: %v", err)
	}
	fmt.Printf("Analysis results saved to: %s\n", outPath)
}

// selectViews parses the -views flag into a set; an empty flag selects all.
func selectViews(list string) (map[fisheye.ViewName]struct{}, error) {
	wanted := make(map[fisheye.ViewName]struct{})
	if strings.TrimSpace(list) == "" {
		for _, name := range fisheye.AllViews() {
			wanted[name] = struct{}{}
		}
		return wanted, nil
	}
	for _, part := range strings.Split(list, ",") {
		name, err := fisheye.ParseViewName(part)
		if err != nil {
			return nil, err
		}
		wanted[name] = struct{}{}
	}
	return wanted, nil
}
