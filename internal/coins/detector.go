package coins

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/pool"
)

// Detection is the outcome for one ellipse candidate.
type Detection struct {
	// Candidate is the ellipse candidate in processed-image coordinates.
	Candidate detection.Candidate `json:"candidate"`

	// Matches holds one result per template, in library order.
	Matches []MatchResult `json:"matches"`

	// Coin is set when the best match exceeded the acceptance threshold.
	Coin *ClassifiedCoin `json:"coin,omitempty"`
}

// CoinCount is the number of coins found for one template key.
type CoinCount struct {
	Key   TemplateKey `json:"template"`
	Count int         `json:"count"`
}

// Result is everything Detect learned about one image.
type Result struct {
	// Width and Height are the dimensions of the processed image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Scale is the factor applied to the source before detection (1.0 when
	// the source already fitted within MaxInputDimension).
	Scale float64 `json:"scale"`

	// Detections holds every candidate in contour order.
	Detections []Detection `json:"detections"`

	// Total is the summed face value of all classified coins.
	Total Value `json:"total_cents"`

	// Image is the processed (possibly resized) image all coordinates refer to.
	Image *image.NRGBA `json:"-"`
}

// Coins returns the classified coins in detection order.
func (r *Result) Coins() []ClassifiedCoin {
	coins := make([]ClassifiedCoin, 0, len(r.Detections))
	for _, d := range r.Detections {
		if d.Coin != nil {
			coins = append(coins, *d.Coin)
		}
	}
	return coins
}

// Counts returns how many coins of each template key were found, in library
// order, omitting keys with no coins.
func (r *Result) Counts() []CoinCount {
	var per [len(TemplateKeys)]int
	for _, c := range r.Coins() {
		if i := c.Key().Index(); i >= 0 {
			per[i]++
		}
	}

	counts := make([]CoinCount, 0)
	for i, n := range per {
		if n > 0 {
			counts = append(counts, CoinCount{Key: TemplateKeys[i], Count: n})
		}
	}
	return counts
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger makes the detector log one line per classified candidate.
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// Detector runs the full coin pipeline against a fixed template library.
// It is safe for concurrent use by multiple goroutines.
type Detector struct {
	cfg      Config
	lib      *Library
	profiler *Profiler
	logger   *log.Logger
}

// NewDetector validates cfg and lib and returns a ready detector.
func NewDetector(cfg Config, lib *Library, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lib == nil {
		return nil, fmt.Errorf("%w: library is nil", ErrInvalidLibrary)
	}

	d := &Detector{
		cfg:      cfg,
		lib:      lib,
		profiler: NewProfiler(lib, cfg.ProfileEdge),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Library returns the detector's template library.
func (d *Detector) Library() *Library {
	return d.lib
}

// Profiler returns the detector's template profiler.
func (d *Detector) Profiler() *Profiler {
	return d.profiler
}

// Derive returns a detector running cfg over the same library and logger.
// The template edge cache is shared when cfg keeps the profile edge
// parameters, which holds for threshold and tolerance overrides.
func (d *Detector) Derive(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nd := &Detector{
		cfg:      cfg,
		lib:      d.lib,
		profiler: d.profiler,
		logger:   d.logger,
	}
	if cfg.ProfileEdge != d.cfg.ProfileEdge {
		nd.profiler = NewProfiler(d.lib, cfg.ProfileEdge)
	}
	return nd, nil
}

// Detect locates, classifies and values the coins in img.
func (d *Detector) Detect(img image.Image) (*Result, error) {
	return d.DetectContext(context.Background(), img)
}

// DetectContext is Detect with a context that stops scheduling further
// candidates once cancelled.
func (d *Detector) DetectContext(ctx context.Context, img image.Image) (*Result, error) {
	src, scale, candidates, err := d.Candidates(img)
	if err != nil {
		return nil, err
	}

	detections, err := pool.Map(ctx, d.cfg.Workers, candidates, func(ctx context.Context, i int, c detection.Candidate) (Detection, error) {
		return d.classify(ctx, src, i, c)
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Width:      src.Bounds().Dx(),
		Height:     src.Bounds().Dy(),
		Scale:      scale,
		Detections: detections,
		Image:      src,
	}
	result.Total = TotalValue(result.Coins())
	return result, nil
}

// Candidates runs the geometric stages only: pre-resize, edge map, contours
// and ellipse filtering. It returns the processed image, the applied scale
// and the candidates in contour order.
func (d *Detector) Candidates(img image.Image) (*image.NRGBA, float64, []detection.Candidate, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, 0, nil, fmt.Errorf("%w: %w", ErrInvalidInput, imaging.ErrEmptyImage)
	}

	src, scale := imaging.FitWithin(img, d.cfg.MaxInputDimension)

	edges, err := imaging.BuildEdgeMap(src, d.cfg.PrimaryEdge)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to build edge map: %w", err)
	}

	return src, scale, detection.FindCandidates(edges, d.cfg.FilterParams()), nil
}

func (d *Detector) classify(ctx context.Context, src *image.NRGBA, i int, c detection.Candidate) (Detection, error) {
	patch, err := detection.ExtractPatch(src, c)
	if err != nil {
		return Detection{}, err
	}

	patchEdges, err := d.profiler.ProfilePatch(patch)
	if err != nil {
		return Detection{}, err
	}

	matches, err := MatchTemplates(ctx, d.profiler, patchEdges, d.cfg.RotationStepDegrees)
	if err != nil {
		return Detection{}, err
	}

	coin, best := Classify(matches, d.cfg.AcceptanceThreshold)
	if d.logger != nil {
		d.logger.Printf("candidate %d closest to %s with %.2f%% matching edges",
			i, matches[best].Key.Label(), matches[best].BestOverlapPercent)
	}

	return Detection{Candidate: c, Matches: matches, Coin: coin}, nil
}
