package statebuilder

import (
	"github.com/janelia-flyem/ngstate/colors"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// VolumeRendering is the volume rendering mode of an image layer.
type VolumeRendering string

const (
	VolumeRenderingOff VolumeRendering = "off"
	VolumeRenderingOn  VolumeRendering = "on"
	VolumeRenderingMax VolumeRendering = "max"
	VolumeRenderingMin VolumeRendering = "min"
)

const colorShader = `#uicontrol vec3 color color(default="white")
#uicontrol invlerp normalized
void main() {
  emitRGB(color * normalized());
}
`

// ImageLayer displays imagery.
type ImageLayer struct {
	LayerWithSource

	// Opacity in [0, 1]; zero leaves the viewer default.
	Opacity   float64
	BlendMode string

	// Color, a "#rrggbb" string set with SetColor, tints the default shader.
	Color string

	VolumeRendering             VolumeRendering
	VolumeRenderingGain         float64
	VolumeRenderingDepthSamples int
	CrossSectionRenderScale     float64
}

// NewImageLayer returns an image layer, with optional source as accepted by AddSource.
func NewImageLayer(name string, source interface{}) (*ImageLayer, error) {
	l := &ImageLayer{LayerWithSource: newLayerWithSource(name)}
	if source != nil {
		if err := l.AddSource(source); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *ImageLayer) Type() LayerType { return ImageLayerType }

// AddShader sets the shader code.
func (l *ImageLayer) AddShader(shader string) *ImageLayer {
	l.Shader = shader
	return l
}

// SetColor sets the tint from a color name, hex string or RGB triple.
func (l *ImageLayer) SetColor(c interface{}) error {
	hex, err := colors.Parse(c)
	if err != nil {
		return err
	}
	l.Color = hex
	return nil
}

// SetVolumeRendering validates and sets the volume rendering mode.
func (l *ImageLayer) SetVolumeRendering(mode VolumeRendering) error {
	switch mode {
	case VolumeRenderingOff, VolumeRenderingOn, VolumeRenderingMax, VolumeRenderingMin:
		l.VolumeRendering = mode
		return nil
	}
	return ngstate.Validationf("unknown volume rendering mode %q", mode)
}

// WithDatamap returns a copy of the layer with DataMaps filled from values.
func (l *ImageLayer) WithDatamap(values interface{}) (*ImageLayer, error) {
	return mapLayer(l, values)
}

// Map fills DataMaps from values, in place or on a copy.
func (l *ImageLayer) Map(values interface{}, inplace bool) (*ImageLayer, error) {
	mapped, err := mapLayer(l, values)
	if err != nil || !inplace {
		return mapped, err
	}
	*l = *mapped
	return l, nil
}

func (l *ImageLayer) ToNeuroglancerLayer() (map[string]interface{}, error) {
	return serializeLayer(l, &wireContext{})
}

func (l *ImageLayer) cloneLayer() Layer {
	dup := *l
	dup.LayerWithSource = l.cloneBase()
	return &dup
}

func (l *ImageLayer) applyDatamap(e datamapEntry, v interface{}) error {
	if e.slot != slotSource {
		return ngstate.Typef("image layer %q has no datamap slot %d", l.name, e.slot)
	}
	return l.applySource(v)
}

func (l *ImageLayer) toWire(ctx *wireContext) (map[string]interface{}, error) {
	wire, err := l.commonWire(ImageLayerType)
	if err != nil {
		return nil, err
	}
	if l.Opacity > 0 {
		wire["opacity"] = l.Opacity
	}
	if l.BlendMode != "" {
		wire["blend"] = l.BlendMode
	}
	if l.Color != "" {
		if l.Shader == "" {
			wire["shader"] = colorShader
		}
		wire["shaderControls"] = map[string]interface{}{"color": l.Color}
	}
	if l.VolumeRendering != "" {
		wire["volumeRendering"] = string(l.VolumeRendering)
	}
	if l.VolumeRenderingGain != 0 {
		wire["volumeRenderingGain"] = l.VolumeRenderingGain
	}
	if l.VolumeRenderingDepthSamples > 0 {
		wire["volumeRenderingDepthSamples"] = l.VolumeRenderingDepthSamples
	}
	if l.CrossSectionRenderScale > 0 {
		wire["crossSectionRenderScale"] = l.CrossSectionRenderScale
	}
	return wire, nil
}
