package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/flame"
)

const tomlScene = `
name = "fern-ish"
width = 640
height = 480
depth = 6

[[transforms]]
coefficients = [0.5, 0, 0, 0, 0.5, 0]

[[transforms]]
scale = [0.5]
rotate = 90
translate = [0.5, 0]

[render]
strategy = "hybrid"
levels_per_pass = 2
filter = "linear"
seed = "fixed-points"

[budget]
max_depth = 4

[tone_map]
mode = "gradient"
bias = 2
gradient = [
  { offset = 0, color = "black" },
  { offset = 1, color = "#ffcc00" },
]
`

const yamlScene = `
name: hexagon
width: 256
height: 256
depth: 3
polygon:
  sides: 6
  scale: 0.4
  shift: 0.6
  rotation: 30
render:
  backend: gpu
  ramp_factor: 4
`

func TestDecodeTOML(t *testing.T) {
	s, err := Decode(strings.NewReader(tomlScene), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "fern-ish", s.Name)
	assert.Equal(t, 640, s.Width)
	assert.Equal(t, 480, s.Height)
	assert.Equal(t, 6, s.Depth)
	require.Len(t, s.Transforms, 2)
	assert.Equal(t, "software", s.Render.Backend, "unset keys keep defaults")

	p, err := s.Params()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Set.Len())
	assert.Equal(t, flame.ToneGradient, p.ToneMap.Mode)
	assert.Equal(t, 2.0, p.ToneMap.Bias)
	assert.Equal(t, 1.0, p.ToneMap.LogBase)
	require.NotNil(t, p.ToneMap.Gradient)
	assert.Len(t, p.ToneMap.Gradient.Stops(), 2)

	m := p.Set.At(1)
	want := flame.NewAffine(0, -0.5, 0.5, 0.5, 0, 0)
	assert.True(t, m.ApproxEqual(want, 1e-12), "got %+v", m)

	o, err := s.Options()
	require.NoError(t, err)
	assert.Equal(t, flame.StrategyHybrid, o.Strategy)
	assert.Equal(t, 2, o.LevelsPerPass)
	assert.Equal(t, flame.FilterLinear, o.Filter)
	assert.Equal(t, flame.SeedFixedPoints, o.Seed)
	assert.Equal(t, 4, o.Budget.MaxDepth)
	assert.Equal(t, flame.DefaultBudget().MaxDraws, o.Budget.MaxDraws)
}

func TestDecodeYAML(t *testing.T) {
	s, err := Decode(strings.NewReader(yamlScene), FormatYAML)
	require.NoError(t, err)
	require.NotNil(t, s.Polygon)
	assert.Equal(t, 6, s.Polygon.Sides)
	assert.Equal(t, "gpu", s.Render.Backend)

	set, err := s.TransformSet()
	require.NoError(t, err)
	assert.Equal(t, 6, set.Len())

	want, err := flame.Polygon(flame.PolygonParams{Sides: 6, Scale: 0.4, Shift: 0.6, Rotation: math.Pi / 6})
	require.NoError(t, err)
	assert.True(t, set.Equal(want))

	o, err := s.Options()
	require.NoError(t, err)
	assert.Equal(t, 4.0, o.RampFactor)
	assert.Equal(t, flame.StrategyInstanced, o.Strategy)
}

func TestDecodeEmpty(t *testing.T) {
	for _, format := range []string{FormatTOML, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			s, err := Decode(strings.NewReader(""), format)
			require.NoError(t, err)
			assert.Equal(t, Default(), s)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		src    string
	}{
		{"unknown toml key", FormatTOML, "colour = 3\n"},
		{"unknown yaml key", FormatYAML, "colour: 3\n"},
		{"bad toml", FormatTOML, "width = \n"},
		{"unknown format", "ini", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlScene), 0o600))
	yamlPath := filepath.Join(dir, "scene.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlScene), 0o600))

	s, err := Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "fern-ish", s.Name)

	s, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "hexagon", s.Name)

	_, err = Load(filepath.Join(dir, "scene.json"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	s, err := Decode(strings.NewReader(tomlScene), FormatTOML)
	require.NoError(t, err)

	for _, format := range []string{FormatTOML, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, s.Encode(&buf, format))
			back, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, s, back)
		})
	}
	assert.ErrorIs(t, s.Encode(&bytes.Buffer{}, "xml"), ErrUnknownFormat)
}

func TestApply(t *testing.T) {
	s, err := Decode(strings.NewReader(tomlScene), FormatTOML)
	require.NoError(t, err)

	err = s.Apply(Overrides{
		Width:   1920,
		Render:  RenderOptions{Backend: "gpu", Workers: 4},
		ToneMap: ToneMap{Mode: "log"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1920, s.Width)
	assert.Equal(t, 480, s.Height, "zero overrides are ignored")
	assert.Equal(t, 6, s.Depth)
	assert.Equal(t, "gpu", s.Render.Backend)
	assert.Equal(t, 4, s.Render.Workers)
	assert.Equal(t, "hybrid", s.Render.Strategy)
	assert.Equal(t, "log", s.ToneMap.Mode)
	assert.Equal(t, 2.0, s.ToneMap.Bias)
	assert.Len(t, s.ToneMap.Gradient, 2)
	assert.Len(t, s.Transforms, 2)

	require.NoError(t, s.Apply(Overrides{Preset: "quadrants"}))
	assert.Nil(t, s.Transforms)
	set, err := s.TransformSet()
	require.NoError(t, err)
	assert.True(t, set.Equal(flame.Quadrants()))
}

func TestTransformAffine(t *testing.T) {
	tests := []struct {
		name    string
		tr      Transform
		want    flame.Affine
		wantErr bool
	}{
		{"identity", Transform{}, flame.Identity(), false},
		{"uniform scale", Transform{Scale: []float64{0.5}}, flame.Scale(0.5, 0.5), false},
		{"scale then translate", Transform{Scale: []float64{0.5, 0.25}, Translate: []float64{1, 2}},
			flame.NewAffine(0.5, 0, 1, 0, 0.25, 2), false},
		{"coefficients", Transform{Coefficients: []float64{1, 2, 3, 4, 5, 6}},
			flame.NewAffine(1, 2, 3, 4, 5, 6), false},
		{"short coefficients", Transform{Coefficients: []float64{1, 2}}, flame.Affine{}, true},
		{"mixed", Transform{Coefficients: []float64{1, 0, 0, 0, 1, 0}, Rotate: 10}, flame.Affine{}, true},
		{"bad scale", Transform{Scale: []float64{1, 2, 3}}, flame.Affine{}, true},
		{"bad translate", Transform{Translate: []float64{1}}, flame.Affine{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tr.Affine()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.ApproxEqual(tt.want, 1e-12), "got %+v, want %+v", got, tt.want)
		})
	}
}

func TestSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Scene)
	}{
		{"unknown preset", func(s *Scene) { s.Preset = "dragon" }},
		{"bad polygon", func(s *Scene) { s.Polygon = &Polygon{Sides: 2, Scale: 0.5} }},
		{"bad tone mode", func(s *Scene) { s.ToneMap.Mode = "aces" }},
		{"bad colour", func(s *Scene) { s.ToneMap.Gradient = []Stop{{Color: "not-a-colour"}} }},
		{"zero width", func(s *Scene) { s.Width = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.edit(s)
			_, err := s.Params()
			assert.Error(t, err)
		})
	}

	s := Default()
	s.Render.Strategy = "tiled"
	_, err := s.Options()
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	s := Default()
	p, err := s.Params()
	require.NoError(t, err)
	assert.True(t, p.Set.Equal(flame.Sierpinski()))
	assert.Equal(t, flame.DefaultToneMapConfig(), p.ToneMap)

	o, err := s.Options()
	require.NoError(t, err)
	assert.Equal(t, 1, o.LevelsPerPass)
	assert.Equal(t, flame.SeedBounds, o.Seed)
}

func TestBundledScenes(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenes", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := Load(path)
			require.NoError(t, err)
			_, err = s.Params()
			require.NoError(t, err)
			_, err = s.Options()
			require.NoError(t, err)
		})
	}
}
