// Package config loads coin-counter settings from YAML or INI files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/render"
)

// EnvTemplatesDir overrides the templates directory of any loaded settings.
const EnvTemplatesDir = "COIN_COUNTER_TEMPLATES"

// ErrUnsupportedFormat is returned for settings files that are neither YAML
// nor INI.
var ErrUnsupportedFormat = errors.New("unsupported settings format")

// App is the complete application configuration: the pipeline tunables plus
// the settings of the CLI collaborators around it.
type App struct {
	coins.Config `yaml:",inline"`

	// TemplatesDir holds the eight reference images.
	TemplatesDir string `yaml:"templates_dir"`

	// OutDir receives annotated images. Empty means next to each input.
	OutDir string `yaml:"out_dir"`

	// HistoryDB is the SQLite results database. Empty disables history.
	HistoryDB string `yaml:"history_db"`

	// Annotate enables writing annotated output images.
	Annotate bool `yaml:"annotate"`

	// Style controls annotation colours.
	Style render.Style `yaml:"style"`

	// Templates maps a template name such as "pennyHeads" to a file path that
	// replaces its default location.
	Templates map[string]string `yaml:"templates"`
}

// Default returns the built-in settings.
func Default() App {
	return App{
		Config:       coins.DefaultConfig(),
		TemplatesDir: "templates",
		Annotate:     true,
		Style:        render.DefaultStyle(),
	}
}

// Load reads settings from path, starting from Default so that missing keys
// keep their built-in values. An empty path returns the defaults. The format
// is chosen by extension: .yaml and .yml for YAML, .ini for INI.
//
// The COIN_COUNTER_TEMPLATES environment variable, when set, replaces the
// templates directory. The result is validated before it is returned.
func Load(path string) (*App, error) {
	app := Default()

	if path != "" {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = loadYAML(path, &app)
		case ".ini":
			err = loadINI(path, &app)
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
		}
		if err != nil {
			return nil, err
		}
	}

	if dir := os.Getenv(EnvTemplatesDir); dir != "" {
		app.TemplatesDir = dir
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

func loadYAML(path string, app *App) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, app); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func loadINI(path string, app *App) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	// Pipeline
	section := cfg.Section("detection")
	app.MinContourPoints = section.Key("min_contour_points").MustInt(app.MinContourPoints)
	app.MinContourArea = section.Key("min_contour_area").MustFloat64(app.MinContourArea)
	app.EllipseFitTolerance = section.Key("ellipse_fit_tolerance").MustFloat64(app.EllipseFitTolerance)
	app.RotationStepDegrees = section.Key("rotation_step_degrees").MustInt(app.RotationStepDegrees)
	app.AcceptanceThreshold = section.Key("acceptance_threshold").MustFloat64(app.AcceptanceThreshold)
	app.MaxInputDimension = section.Key("max_input_dimension").MustInt(app.MaxInputDimension)
	app.Workers = section.Key("workers").MustInt(app.Workers)

	for name, params := range map[string]*imaging.EdgeParams{
		"primary_edge": &app.PrimaryEdge,
		"profile_edge": &app.ProfileEdge,
	} {
		if err := cfg.Section(name).StrictMapTo(params); err != nil {
			return fmt.Errorf("failed to parse [%s]: %w", name, err)
		}
	}

	// Paths
	section = cfg.Section("paths")
	app.TemplatesDir = section.Key("templates_dir").MustString(app.TemplatesDir)
	app.OutDir = section.Key("out_dir").MustString(app.OutDir)
	app.HistoryDB = section.Key("history_db").MustString(app.HistoryDB)

	// Annotation. '#' starts an INI comment, so colours are written without it.
	section = cfg.Section("annotate")
	app.Annotate = section.Key("enabled").MustBool(app.Annotate)
	if err := section.StrictMapTo(&app.Style); err != nil {
		return fmt.Errorf("failed to parse [annotate]: %w", err)
	}

	// Template overrides
	if cfg.HasSection("templates") {
		for _, key := range cfg.Section("templates").Keys() {
			if app.Templates == nil {
				app.Templates = make(map[string]string)
			}
			app.Templates[key.Name()] = strings.TrimSpace(key.String())
		}
	}
	return nil
}

// Validate checks the pipeline settings, the annotation style and the
// template overrides.
func (a App) Validate() error {
	if err := a.Config.Validate(); err != nil {
		return err
	}
	if err := a.Style.Validate(); err != nil {
		return fmt.Errorf("%w: %v", coins.ErrInvalidConfig, err)
	}
	if a.Style.EllipseThickness < 1 || a.Style.BoxThickness < 1 {
		return fmt.Errorf("%w: annotation thickness must be at least 1", coins.ErrInvalidConfig)
	}
	if _, err := a.TemplateOverrides(); err != nil {
		return err
	}
	return nil
}

// TemplateOverrides converts Templates into library override paths. Names
// are matched case-insensitively against the template names.
func (a App) TemplateOverrides() (map[coins.TemplateKey]string, error) {
	overrides := make(map[coins.TemplateKey]string, len(a.Templates))
	for name, path := range a.Templates {
		key, ok := lookupTemplate(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown template %q", coins.ErrInvalidConfig, name)
		}
		overrides[key] = path
	}
	return overrides, nil
}

func lookupTemplate(name string) (coins.TemplateKey, bool) {
	for _, key := range coins.TemplateKeys {
		if strings.EqualFold(key.Name(), name) {
			return key, true
		}
	}
	return coins.TemplateKey{}, false
}
