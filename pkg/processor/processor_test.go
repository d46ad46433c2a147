package processor

import (
	"context"
	"errors"
	"image"
	"sort"
	"strings"
	"testing"

	"github.com/aidan3e4/vibecast/pkg/config"
	"github.com/aidan3e4/vibecast/pkg/fisheye"
	"github.com/aidan3e4/vibecast/pkg/prompts"
)

// fakeStore serves one frame and records uploads in memory.
type fakeStore struct {
	frame      image.Image
	imageKeys  []string
	jsonKeys   []string
	lastUpload image.Image
}

func (f *fakeStore) DownloadImage(_ context.Context, bucket, key string) (image.Image, error) {
	if f.frame == nil {
		return nil, errors.New("no such object")
	}
	return f.frame, nil
}

func (f *fakeStore) UploadImage(_ context.Context, img image.Image, bucket, key string) (string, error) {
	f.imageKeys = append(f.imageKeys, key)
	f.lastUpload = img
	return "s3://" + bucket + "/" + key, nil
}

func (f *fakeStore) UploadJSON(_ context.Context, doc interface{}, bucket, key string) (string, error) {
	f.jsonKeys = append(f.jsonKeys, key)
	return "s3://" + bucket + "/" + key, nil
}

// fakeAnalyzer returns a canned document and records prompts.
type fakeAnalyzer struct {
	calls   int
	prompts []string
	models  []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, prompt, model string) (map[string]interface{}, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	return map[string]interface{}{"mood": "calm"}, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.OutputBucket = "out"
	cfg.Storage.ResultsBucket = "results"
	// Small views keep the pipeline tests fast.
	cfg.Processing.OutputWidth = 40
	cfg.Processing.OutputHeight = 30
	return cfg
}

func testProcessor(store *fakeStore, analyzer *fakeAnalyzer) *Processor {
	var a Analyzer
	if analyzer != nil {
		a = analyzer
	}
	return New(store, a, nil, testConfig(), nil)
}

// TestProcessRequiresOperation verifies the at-least-one-operation rule.
func TestProcessRequiresOperation(t *testing.T) {
	p := testProcessor(&fakeStore{}, nil)

	_, err := p.Process(context.Background(), Request{InputURI: "s3://in/frame.jpg"})
	if !errors.Is(err, ErrNoOperation) {
		t.Errorf("Expected ErrNoOperation, got %v", err)
	}
}

// TestProcessRotateRequiresAngle verifies rotation demands an angle.
func TestProcessRotateRequiresAngle(t *testing.T) {
	p := testProcessor(&fakeStore{}, nil)

	_, err := p.Process(context.Background(), Request{InputURI: "s3://in/frame.jpg", Rotate: true})
	if !errors.Is(err, ErrRotationRequired) {
		t.Errorf("Expected ErrRotationRequired, got %v", err)
	}
}

// TestProcessRejectsInvalidView verifies view normalization failures stop
// the run before any storage access.
func TestProcessRejectsInvalidView(t *testing.T) {
	store := &fakeStore{}
	p := testProcessor(store, nil)

	_, err := p.Process(context.Background(), Request{
		InputURI: "s3://in/frame.jpg",
		Unwarp:   true,
		Analyze:  true,
		Views:    []string{"N", "Q"},
	})
	if !errors.Is(err, fisheye.ErrUnknownView) {
		t.Errorf("Expected ErrUnknownView, got %v", err)
	}
	if len(store.imageKeys) != 0 {
		t.Errorf("Expected no uploads after validation failure")
	}
}

// TestProcessRejectsBadURI verifies malformed input URIs are rejected.
func TestProcessRejectsBadURI(t *testing.T) {
	p := testProcessor(&fakeStore{}, nil)

	if _, err := p.Process(context.Background(), Request{InputURI: "ftp://x/y", Unwarp: true}); err == nil {
		t.Errorf("Expected error for malformed URI")
	}
}

// TestProcessUnwarp verifies the unwarp-only mode uploads the five views
// under the expected keys and reports their URIs.
func TestProcessUnwarp(t *testing.T) {
	store := &fakeStore{frame: image.NewNRGBA(image.Rect(0, 0, 64, 64))}
	p := testProcessor(store, nil)

	result, err := p.Process(context.Background(), Request{
		InputURI: "s3://in/images/cam1/frame.jpg",
		Unwarp:   true,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.UnwarpedImages) != 5 {
		t.Fatalf("Expected 5 unwarped URIs, got %d", len(result.UnwarpedImages))
	}

	sort.Strings(store.imageKeys)
	want := []string{
		"unwarped/cam1/frame_below.jpg",
		"unwarped/cam1/frame_east.jpg",
		"unwarped/cam1/frame_north.jpg",
		"unwarped/cam1/frame_south.jpg",
		"unwarped/cam1/frame_west.jpg",
	}
	for i, k := range want {
		if store.imageKeys[i] != k {
			t.Errorf("Upload key %d = %q, want %q", i, store.imageKeys[i], k)
		}
	}

	if result.Config.FOV != 90 || result.Config.ViewAngle != 45 {
		t.Errorf("Result config missing unwarp parameters: %+v", result.Config)
	}
	if len(store.jsonKeys) != 1 || !strings.HasPrefix(store.jsonKeys[0], "results/cam1/frame_results_") {
		t.Errorf("Unexpected results key %v", store.jsonKeys)
	}
	if result.ResultsURI == "" {
		t.Errorf("Expected results URI to be set")
	}
	if result.AnalysisResults != nil {
		t.Errorf("Unexpected analysis results in unwarp-only mode")
	}
}

// TestProcessRotate verifies the rotate mode uploads next to the input key.
func TestProcessRotate(t *testing.T) {
	store := &fakeStore{frame: image.NewNRGBA(image.Rect(0, 0, 40, 20))}
	p := testProcessor(store, nil)

	angle := 90.0
	result, err := p.Process(context.Background(), Request{
		InputURI:      "s3://in/path/frame.jpg",
		Rotate:        true,
		RotationAngle: &angle,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(store.imageKeys) != 1 || store.imageKeys[0] != "path/frame_rotated.jpg" {
		t.Errorf("Unexpected rotated key %v", store.imageKeys)
	}
	if result.RotatedImage != "s3://out/path/frame_rotated.jpg" {
		t.Errorf("Unexpected rotated URI %q", result.RotatedImage)
	}
	if result.Config.RotationAngle != 90 {
		t.Errorf("Result config missing rotation angle: %+v", result.Config)
	}

	// A quarter turn swaps the dimensions of the uploaded image.
	b := store.lastUpload.Bounds()
	if b.Dx() != 20 || b.Dy() != 40 {
		t.Errorf("Expected 20x40 rotated upload, got %dx%d", b.Dx(), b.Dy())
	}
}

// TestProcessAnalyzeOnly verifies analysis of an already-flat input image.
func TestProcessAnalyzeOnly(t *testing.T) {
	store := &fakeStore{frame: image.NewNRGBA(image.Rect(0, 0, 32, 32))}
	analyzer := &fakeAnalyzer{}
	p := testProcessor(store, analyzer)

	result, err := p.Process(context.Background(), Request{
		InputURI: "s3://in/views/frame_north.jpg",
		Analyze:  true,
		Prompt:   "Describe the room",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if analyzer.calls != 1 {
		t.Fatalf("Expected 1 analysis call, got %d", analyzer.calls)
	}
	if analyzer.prompts[0] != "Describe the room" || analyzer.models[0] != "gpt-4o-mini" {
		t.Errorf("Analyzer got (%q, %q)", analyzer.prompts[0], analyzer.models[0])
	}
	if _, ok := result.AnalysisResults["Image"]; !ok {
		t.Errorf("Expected whole-image analysis under key Image, got %v", result.AnalysisResults)
	}
	if len(store.imageKeys) != 0 {
		t.Errorf("Analyze-only mode should upload no images, got %v", store.imageKeys)
	}
}

// TestProcessUnwarpAndAnalyzeSelected verifies combined mode analyzes only
// the requested views while still uploading all five.
func TestProcessUnwarpAndAnalyzeSelected(t *testing.T) {
	store := &fakeStore{frame: image.NewNRGBA(image.Rect(0, 0, 64, 64))}
	analyzer := &fakeAnalyzer{}
	p := testProcessor(store, analyzer)

	result, err := p.Process(context.Background(), Request{
		InputURI: "s3://in/images/frame.jpg",
		Unwarp:   true,
		Analyze:  true,
		Views:    []string{"n", "B"},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(store.imageKeys) != 5 {
		t.Errorf("Expected all 5 views uploaded, got %d", len(store.imageKeys))
	}
	if analyzer.calls != 2 {
		t.Errorf("Expected 2 analysis calls, got %d", analyzer.calls)
	}
	if _, ok := result.AnalysisResults["North"]; !ok {
		t.Errorf("Expected North analysis, got %v", result.AnalysisResults)
	}
	if _, ok := result.AnalysisResults["Below"]; !ok {
		t.Errorf("Expected Below analysis, got %v", result.AnalysisResults)
	}
	// The default prompt falls back to the built-in text.
	if analyzer.prompts[0] != prompts.DefaultPrompt {
		t.Errorf("Expected the built-in default prompt")
	}
}
