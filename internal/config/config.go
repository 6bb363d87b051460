// Package config loads flame scenes from TOML or YAML files.
//
// A scene names a transform set (a preset, a polygon generator or explicit
// maps), the output size and depth, renderer options, budget limits and a
// tone map. Command-line flags are merged onto a loaded scene with
// [Scene.Apply].
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/render"
)

// Formats understood by Load, Decode and Encode.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for file extensions other than
// .toml, .yaml and .yml.
var ErrUnknownFormat = errors.New("config: unknown scene format")

// Scene is the on-disk description of a render.
type Scene struct {
	Name   string `toml:"name" yaml:"name"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	Depth  int    `toml:"depth" yaml:"depth"`

	// Preset is one of "sierpinski", "opposite-corners" or "quadrants".
	// It is used when neither Polygon nor Transforms is set.
	Preset string `toml:"preset,omitempty" yaml:"preset,omitempty"`

	Polygon    *Polygon    `toml:"polygon,omitempty" yaml:"polygon,omitempty"`
	Transforms []Transform `toml:"transforms,omitempty" yaml:"transforms,omitempty"`

	Render  RenderOptions `toml:"render" yaml:"render"`
	Bounds  BoundsOptions `toml:"bounds" yaml:"bounds"`
	Budget  Budget        `toml:"budget" yaml:"budget"`
	ToneMap ToneMap       `toml:"tone_map" yaml:"tone_map"`
}

// Polygon configures the polygon generator. Angles are in degrees.
type Polygon struct {
	Sides    int        `toml:"sides" yaml:"sides"`
	Scale    float64    `toml:"scale" yaml:"scale"`
	Shift    float64    `toml:"shift" yaml:"shift"`
	Rotation float64    `toml:"rotation" yaml:"rotation"`
	Twist    [2]float64 `toml:"twist" yaml:"twist"`
}

// Transform is one affine map, given either as six coefficients
// (a b c d e f for x' = ax+by+c, y' = dx+ey+f) or as a scale, a rotation in
// degrees and a translation applied in that order.
type Transform struct {
	Coefficients []float64 `toml:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	Scale        []float64 `toml:"scale,omitempty" yaml:"scale,omitempty"`
	Rotate       float64   `toml:"rotate,omitempty" yaml:"rotate,omitempty"`
	Translate    []float64 `toml:"translate,omitempty" yaml:"translate,omitempty"`
}

// RenderOptions mirrors render.Options with string enums.
type RenderOptions struct {
	Backend       string  `toml:"backend" yaml:"backend"`
	Workers       int     `toml:"workers" yaml:"workers"`
	LevelsPerPass int     `toml:"levels_per_pass" yaml:"levels_per_pass"`
	Strategy      string  `toml:"strategy" yaml:"strategy"`
	RampFactor    float64 `toml:"ramp_factor" yaml:"ramp_factor"`
	MinPassSize   int     `toml:"min_pass_size" yaml:"min_pass_size"`
	Filter        string  `toml:"filter" yaml:"filter"`
	Seed          string  `toml:"seed" yaml:"seed"`
}

// BoundsOptions overrides the bounds iteration. Zero fields keep defaults.
type BoundsOptions struct {
	Levels    int     `toml:"levels,omitempty" yaml:"levels,omitempty"`
	MaxRounds int     `toml:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`
	Tolerance float64 `toml:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Slack     float64 `toml:"slack,omitempty" yaml:"slack,omitempty"`
}

// Budget overrides resource limits. Zero fields keep defaults.
type Budget struct {
	MaxDraws            int   `toml:"max_draws,omitempty" yaml:"max_draws,omitempty"`
	MaxTextureBytes     int64 `toml:"max_texture_bytes,omitempty" yaml:"max_texture_bytes,omitempty"`
	MaxDepth            int   `toml:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	MaxTextureDimension int   `toml:"max_texture_dimension,omitempty" yaml:"max_texture_dimension,omitempty"`
}

// ToneMap configures tone mapping. LogBase and Bias apply to log mode only.
type ToneMap struct {
	Mode     string  `toml:"mode" yaml:"mode"`
	LogBase  float64 `toml:"log_base" yaml:"log_base"`
	Bias     float64 `toml:"bias" yaml:"bias"`
	MaxLevel float64 `toml:"max_level,omitempty" yaml:"max_level,omitempty"`
	Gradient []Stop  `toml:"gradient,omitempty" yaml:"gradient,omitempty"`
}

// Stop is a gradient colour stop. Color is a hex value or an SVG colour name.
type Stop struct {
	Offset float64 `toml:"offset" yaml:"offset"`
	Color  string  `toml:"color" yaml:"color"`
}

// Default returns a 1024x1024 Sierpinski scene at depth 8 on the software
// backend.
func Default() *Scene {
	opts := render.DefaultOptions()
	tm := flame.DefaultToneMapConfig()
	return &Scene{
		Name:   "sierpinski",
		Width:  1024,
		Height: 1024,
		Depth:  8,
		Preset: "sierpinski",
		Render: RenderOptions{
			Backend:       "software",
			LevelsPerPass: opts.LevelsPerPass,
			Strategy:      opts.Strategy.String(),
			RampFactor:    opts.RampFactor,
			Filter:        opts.Filter.String(),
			Seed:          opts.Seed.String(),
		},
		ToneMap: ToneMap{
			Mode:    tm.Mode.String(),
			LogBase: tm.LogBase,
			Bias:    tm.Bias,
		},
	}
}

// Load reads a scene file, choosing the decoder by extension. Fields the
// file leaves out keep the values from Default.
func Load(path string) (*Scene, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// FormatOf returns the scene format for a file name.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Decode reads a scene in the given format on top of Default.
// Unknown keys are errors.
func Decode(r io.Reader, format string) (*Scene, error) {
	s := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return s, nil
}

// Encode writes the scene in the given format.
func (s *Scene) Encode(w io.Writer, format string) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Overrides holds command-line values. Zero values leave the scene
// unchanged, so a flag cannot reset a field to zero or false.
type Overrides struct {
	Width  int
	Height int
	Depth  int
	Preset string

	Render  RenderOptions
	ToneMap ToneMap
}

// sceneOverrides is the top-level subset of Overrides. Copying Overrides
// itself would replace the Render and ToneMap sections wholesale.
type sceneOverrides struct {
	Width  int
	Height int
	Depth  int
	Preset string
}

// Apply merges non-zero overrides onto the scene. A preset override also
// clears any polygon or explicit transforms so that the preset takes effect.
func (s *Scene) Apply(o Overrides) error {
	if err := merge(s, &s.Render, &s.ToneMap, o); err != nil {
		return err
	}
	if o.Preset != "" {
		s.Polygon = nil
		s.Transforms = nil
	}
	return nil
}

// Merge copies the non-zero fields of u onto o.
func (o *Overrides) Merge(u Overrides) error {
	return merge(o, &o.Render, &o.ToneMap, u)
}

func merge(top any, r *RenderOptions, tm *ToneMap, o Overrides) error {
	opt := copier.Option{IgnoreEmpty: true}
	so := sceneOverrides{Width: o.Width, Height: o.Height, Depth: o.Depth, Preset: o.Preset}
	if err := copier.CopyWithOption(top, &so, opt); err != nil {
		return fmt.Errorf("config: apply overrides: %w", err)
	}
	if err := copier.CopyWithOption(r, &o.Render, opt); err != nil {
		return fmt.Errorf("config: apply render overrides: %w", err)
	}
	if err := copier.CopyWithOption(tm, &o.ToneMap, opt); err != nil {
		return fmt.Errorf("config: apply tone map overrides: %w", err)
	}
	return nil
}

// TransformSet builds the scene's maps: Polygon first, then Transforms,
// then Preset.
func (s *Scene) TransformSet() (*flame.TransformSet, error) {
	switch {
	case s.Polygon != nil:
		p := s.Polygon
		set, err := flame.Polygon(flame.PolygonParams{
			Sides:    p.Sides,
			Scale:    p.Scale,
			Shift:    p.Shift,
			Rotation: radians(p.Rotation),
			Twist:    [2]float64{radians(p.Twist[0]), radians(p.Twist[1])},
		})
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return set, nil
	case len(s.Transforms) > 0:
		maps := make([]flame.Affine, len(s.Transforms))
		for i, t := range s.Transforms {
			m, err := t.Affine()
			if err != nil {
				return nil, fmt.Errorf("config: transform %d: %w", i, err)
			}
			maps[i] = m
		}
		set, err := flame.NewTransformSet(maps...)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return set, nil
	}
	return PresetSet(s.Preset)
}

// PresetSet returns a named preset.
func PresetSet(name string) (*flame.TransformSet, error) {
	switch strings.ToLower(name) {
	case "sierpinski":
		return flame.Sierpinski(), nil
	case "opposite-corners":
		return flame.OppositeCorners(), nil
	case "quadrants":
		return flame.Quadrants(), nil
	}
	return nil, fmt.Errorf("config: unknown preset %q", name)
}

// Affine converts the transform to a matrix.
func (t Transform) Affine() (flame.Affine, error) {
	if len(t.Coefficients) > 0 {
		if len(t.Coefficients) != 6 {
			return flame.Affine{}, fmt.Errorf("want 6 coefficients, got %d", len(t.Coefficients))
		}
		if len(t.Scale) > 0 || t.Rotate != 0 || len(t.Translate) > 0 {
			return flame.Affine{}, errors.New("coefficients cannot be combined with scale, rotate or translate")
		}
		c := t.Coefficients
		return flame.NewAffine(c[0], c[1], c[2], c[3], c[4], c[5]), nil
	}

	sx, sy := 1.0, 1.0
	switch len(t.Scale) {
	case 0:
	case 1:
		sx, sy = t.Scale[0], t.Scale[0]
	case 2:
		sx, sy = t.Scale[0], t.Scale[1]
	default:
		return flame.Affine{}, fmt.Errorf("scale takes 1 or 2 values, got %d", len(t.Scale))
	}
	var tx, ty float64
	switch len(t.Translate) {
	case 0:
	case 2:
		tx, ty = t.Translate[0], t.Translate[1]
	default:
		return flame.Affine{}, fmt.Errorf("translate takes 2 values, got %d", len(t.Translate))
	}
	return flame.Translate(tx, ty).
		Multiply(flame.Rotate(radians(t.Rotate))).
		Multiply(flame.Scale(sx, sy)), nil
}

// Params converts the scene to renderer parameters.
func (s *Scene) Params() (render.Params, error) {
	set, err := s.TransformSet()
	if err != nil {
		return render.Params{}, err
	}
	tm, err := s.ToneMap.Config()
	if err != nil {
		return render.Params{}, err
	}
	p := render.Params{
		Set:     set,
		Width:   s.Width,
		Height:  s.Height,
		Depth:   s.Depth,
		ToneMap: tm,
	}
	if err := p.Validate(); err != nil {
		return render.Params{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// Options converts the scene to renderer options. Unset fields keep
// render.DefaultOptions values.
func (s *Scene) Options() (render.Options, error) {
	o := render.DefaultOptions()
	r := s.Render
	var err error
	if r.Strategy != "" {
		if o.Strategy, err = flame.ParseStrategy(r.Strategy); err != nil {
			return o, fmt.Errorf("config: %w", err)
		}
	}
	if r.Filter != "" {
		if o.Filter, err = flame.ParseFilter(r.Filter); err != nil {
			return o, fmt.Errorf("config: %w", err)
		}
	}
	if r.Seed != "" {
		if o.Seed, err = flame.ParseSeedMode(r.Seed); err != nil {
			return o, fmt.Errorf("config: %w", err)
		}
	}
	if r.LevelsPerPass > 0 {
		o.LevelsPerPass = r.LevelsPerPass
	}
	if r.RampFactor != 0 {
		o.RampFactor = r.RampFactor
	}
	if r.MinPassSize > 0 {
		o.MinPassSize = r.MinPassSize
	}

	b := s.Bounds
	if b.Levels > 0 {
		o.Bounds.Levels = b.Levels
	}
	if b.MaxRounds > 0 {
		o.Bounds.MaxRounds = b.MaxRounds
	}
	if b.Tolerance > 0 {
		o.Bounds.Tolerance = b.Tolerance
	}
	if b.Slack > 0 {
		o.Bounds.Slack = b.Slack
	}

	o.Budget = flame.Budget{
		MaxDraws:            s.Budget.MaxDraws,
		MaxTextureBytes:     s.Budget.MaxTextureBytes,
		MaxDepth:            s.Budget.MaxDepth,
		MaxTextureDimension: s.Budget.MaxTextureDimension,
	}
	def := flame.DefaultBudget()
	if o.Budget.MaxDraws <= 0 {
		o.Budget.MaxDraws = def.MaxDraws
	}
	if o.Budget.MaxTextureBytes <= 0 {
		o.Budget.MaxTextureBytes = def.MaxTextureBytes
	}
	if o.Budget.MaxDepth <= 0 {
		o.Budget.MaxDepth = def.MaxDepth
	}
	if o.Budget.MaxTextureDimension <= 0 {
		o.Budget.MaxTextureDimension = def.MaxTextureDimension
	}
	return o, nil
}

// Config converts the section to a tone map configuration.
func (t ToneMap) Config() (flame.ToneMapConfig, error) {
	c := flame.DefaultToneMapConfig()
	if t.Mode != "" {
		mode, err := flame.ParseToneMode(t.Mode)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		c.Mode = mode
	}
	if t.LogBase != 0 {
		c.LogBase = t.LogBase
	}
	c.Bias = t.Bias
	c.MaxLevel = t.MaxLevel
	if len(t.Gradient) > 0 {
		stops := make([]flame.ColorStop, len(t.Gradient))
		for i, st := range t.Gradient {
			col, err := flame.ParseColor(st.Color)
			if err != nil {
				return c, fmt.Errorf("config: gradient stop %d: %w", i, err)
			}
			stops[i] = flame.ColorStop{Offset: st.Offset, Color: col}
		}
		g, err := flame.NewGradient(stops...)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		c.Gradient = g
	}
	return c, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
