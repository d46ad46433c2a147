// Package processor runs the fisheye processing pipeline: download a frame
// from storage, unwarp and/or rotate it, optionally analyze views with the
// vision model, and store the produced images plus a results document.
//
// All calls are synchronous; the only internal concurrency is the per-view
// fan-out inside the fisheye package.
package processor

import (
	"context"
	"image"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aidan3e4/vibecast/internal/models"
	"github.com/aidan3e4/vibecast/pkg/config"
	"github.com/aidan3e4/vibecast/pkg/fisheye"
	"github.com/aidan3e4/vibecast/pkg/imgio"
	"github.com/aidan3e4/vibecast/pkg/prompts"
	"github.com/aidan3e4/vibecast/pkg/storage"
)

// Pipeline validation errors.
var (
	ErrNoOperation      = errors.New("at least one operation is required: unwarp, rotate or analyze")
	ErrRotationRequired = errors.New("rotation angle is required when rotate is set")
)

// Storage is the object-store surface the pipeline needs.
type Storage interface {
	DownloadImage(ctx context.Context, bucket, key string) (image.Image, error)
	UploadImage(ctx context.Context, img image.Image, bucket, key string) (string, error)
	UploadJSON(ctx context.Context, doc interface{}, bucket, key string) (string, error)
}

// Analyzer submits one image to the vision model.
type Analyzer interface {
	Analyze(ctx context.Context, imageBase64, prompt, modelID string) (map[string]interface{}, error)
}

// Request describes one processing run.
type Request struct {
	// InputURI is the s3:// URI of the fisheye frame
	InputURI string

	// Unwarp produces and uploads the five rectified views
	Unwarp bool

	// Rotate uploads a rotated copy of the frame; RotationAngle must be
	// set when Rotate is
	Rotate        bool
	RotationAngle *float64

	// Analyze runs the vision model, over the whole frame or, combined
	// with Unwarp, over the selected views
	Analyze bool

	// Views restricts analysis to these views (names or shortcuts);
	// empty means all five
	Views []string

	// Prompt and Model override the configured defaults when non-empty
	Prompt string
	Model  string

	// FOV and ViewAngle override the configured unwarp parameters when
	// non-zero
	FOV       float64
	ViewAngle float64
}

// Processor wires the pipeline's collaborators together.
type Processor struct {
	store    Storage
	analyzer Analyzer
	prompts  prompts.Store
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a processor. The prompt store and analyzer may be nil when the
// caller never requests analysis.
func New(store Storage, analyzer Analyzer, promptStore prompts.Store, cfg *config.Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:    store,
		analyzer: analyzer,
		prompts:  promptStore,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// normalizeViews resolves the requested view names, or all five when none
// are given.
func normalizeViews(requested []string) ([]fisheye.ViewName, error) {
	if len(requested) == 0 {
		return fisheye.AllViews(), nil
	}
	out := make([]fisheye.ViewName, 0, len(requested))
	for _, v := range requested {
		name, err := fisheye.ParseViewName(v)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// Process runs one request end to end. It either returns a complete result
// or an error; partial results are never returned.
func (p *Processor) Process(ctx context.Context, req Request) (*models.Result, error) {
	if !req.Unwarp && !req.Rotate && !req.Analyze {
		return nil, ErrNoOperation
	}
	if req.Rotate && req.RotationAngle == nil {
		return nil, ErrRotationRequired
	}

	analyzeViews, err := normalizeViews(req.Views)
	if err != nil {
		return nil, err
	}

	opts := p.cfg.ProcessingOptions()
	if req.FOV != 0 {
		opts.FOV = req.FOV
	}
	if req.ViewAngle != 0 {
		opts.ViewAngle = req.ViewAngle
	}
	if req.Unwarp {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}

	inputBucket, inputKey, err := storage.ParseURI(req.InputURI)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.cfg.LLM.Model
	}
	prompt := req.Prompt
	if prompt == "" && req.Analyze {
		prompt = prompts.GetDefault(ctx, p.prompts)
	}

	p.logger.Info("processing frame",
		zap.String("input", req.InputURI),
		zap.Bool("unwarp", req.Unwarp),
		zap.Bool("rotate", req.Rotate),
		zap.Bool("analyze", req.Analyze))

	frame, err := p.store.DownloadImage(ctx, inputBucket, inputKey)
	if err != nil {
		return nil, err
	}

	result := &models.Result{
		InputURI:    req.InputURI,
		ProcessedAt: p.now().UTC().Format(time.RFC3339),
		Config: models.ResultConfig{
			Unwarp:  req.Unwarp,
			Rotate:  req.Rotate,
			Analyze: req.Analyze,
		},
	}

	var views fisheye.ViewCollection
	if req.Unwarp {
		views, err = fisheye.RoomViews(frame, opts)
		if err != nil {
			return nil, err
		}

		prefix := storage.OutputPrefix(inputKey, "unwarped")
		uris := make(map[string]string, len(views))
		for _, name := range fisheye.AllViews() {
			key := prefix + "_" + strings.ToLower(string(name)) + ".jpg"
			uri, err := p.store.UploadImage(ctx, views[name], p.cfg.Storage.OutputBucket, key)
			if err != nil {
				return nil, err
			}
			uris[string(name)] = uri
		}
		result.UnwarpedImages = uris
		result.Config.FOV = opts.FOV
		result.Config.ViewAngle = opts.ViewAngle
	}

	if req.Rotate {
		rotated := imgio.Rotate(frame, *req.RotationAngle)
		key := strings.TrimSuffix(inputKey, path.Ext(inputKey)) + "_rotated.jpg"
		uri, err := p.store.UploadImage(ctx, rotated, p.cfg.Storage.OutputBucket, key)
		if err != nil {
			return nil, err
		}
		result.RotatedImage = uri
		result.Config.RotationAngle = *req.RotationAngle
	}

	if req.Analyze {
		analyses := make(map[string]map[string]interface{})
		if req.Unwarp {
			for _, name := range analyzeViews {
				doc, err := p.analyzeImage(ctx, views[name], prompt, model)
				if err != nil {
					return nil, errors.Wrapf(err, "analyzing %s view", name)
				}
				analyses[string(name)] = doc
			}
		} else {
			// The input is already a flat image; analyze it whole.
			doc, err := p.analyzeImage(ctx, frame, prompt, model)
			if err != nil {
				return nil, err
			}
			analyses["Image"] = doc
		}
		result.AnalysisResults = analyses
		result.Config.Prompt = prompt
		result.Config.Model = model
	}

	resultsKey := storage.OutputPrefix(inputKey, "results") +
		"_results_" + p.now().UTC().Format("20060102_150405") + ".json"
	resultsURI, err := p.store.UploadJSON(ctx, result, p.cfg.Storage.ResultsBucket, resultsKey)
	if err != nil {
		return nil, err
	}
	result.ResultsURI = resultsURI

	return result, nil
}

func (p *Processor) analyzeImage(ctx context.Context, img image.Image, prompt, model string) (map[string]interface{}, error) {
	if p.analyzer == nil {
		return nil, errors.New("no analyzer configured")
	}
	b64, err := imgio.ToBase64(img)
	if err != nil {
		return nil, err
	}
	return p.analyzer.Analyze(ctx, b64, prompt, model)
}
