package statebuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
)

const (
	// DefaultScaleImagery is the default zoom of the cross-section panels.
	DefaultScaleImagery = 1.0

	// DefaultScale3D is the default zoom of the 3d panel.
	DefaultScale3D = 1000.0
)

// SelectedLayer is the layer shown in the side panel.
type SelectedLayer struct {
	Name    string
	Visible bool
}

// ViewerState builds a viewer state from layers and view parameters.  The
// viewer-level part of the serialized state is memoized until a setter changes
// a value.  Layers are held by reference and serialized on every call, so
// changes to a layer already added always show.
type ViewerState struct {
	layers *NamedList[Layer]

	dimensions       *CoordSpace
	position         ngstate.NdFloat64
	scaleImagery     float64
	scale3D          float64
	layout           Layout
	selected         *SelectedLayer
	showSlices       bool
	interactive      bool
	inferCoordinates bool
	baseState        map[string]interface{}

	site       config.Site
	infoClient InfoClient
	inspector  SourceInspector
	linkMaker  LinkMaker

	cache      map[string]interface{}
	cacheDims  *CoordSpace
	sourceInfo *SourceInfo
	sourceURL  string
}

// Option configures a new ViewerState.
type Option func(*ViewerState)

// WithSite sets the viewer site used to make links.
func WithSite(site config.Site) Option {
	return func(v *ViewerState) {
		v.site = site
	}
}

// WithInfoClient sets the client used by AddLayersFromClient.
func WithInfoClient(c InfoClient) Option {
	return func(v *ViewerState) {
		v.infoClient = c
	}
}

// WithSourceInspector sets the inspector used to infer coordinates from sources.
func WithSourceInspector(s SourceInspector) Option {
	return func(v *ViewerState) {
		v.inspector = s
	}
}

// WithLinkMaker sets the maker of URLs and short links.  By default URLs are
// made from the site, and links can't be shortened.
func WithLinkMaker(m LinkMaker) Option {
	return func(v *ViewerState) {
		v.linkMaker = m
	}
}

// WithDimensions sets the viewer coordinate space.
func WithDimensions(cs *CoordSpace) Option {
	return func(v *ViewerState) {
		v.dimensions = cs
	}
}

// WithBaseState sets fields merged into the serialized state and overridden by
// any field the builder sets.
func WithBaseState(base map[string]interface{}) Option {
	return func(v *ViewerState) {
		v.baseState = base
	}
}

// WithLayers adds layers, none of them selected.  Use AddLayers for error
// checking.
func WithLayers(layers ...Layer) Option {
	return func(v *ViewerState) {
		v.layers.Append(layers...)
	}
}

// NewViewerState returns an empty viewer state.
func NewViewerState(opts ...Option) *ViewerState {
	site := config.Default().Sites[config.DefaultSiteName]
	v := &ViewerState{
		layers:       NewNamedList[Layer](),
		scaleImagery: DefaultScaleImagery,
		scale3D:      DefaultScale3D,
		layout:       DefaultLayout,
		site:         site,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Invalidate drops the memoized serialized state.
func (v *ViewerState) Invalidate() {
	v.cache = nil
	v.cacheDims = nil
}

func (v *ViewerState) invalidateSources() {
	v.sourceInfo = nil
	v.Invalidate()
}

// Layers returns the layers in order.
func (v *ViewerState) Layers() []Layer {
	return v.layers.Items()
}

// LayerNames returns the layer names in order.
func (v *ViewerState) LayerNames() []string {
	return v.layers.Names()
}

// Layer returns the first layer with the given name.
func (v *ViewerState) Layer(name string) (Layer, error) {
	l, err := v.layers.Get(name)
	if err != nil {
		return nil, ngstate.NotFoundf("no layer named %q", name)
	}
	return l, nil
}

// AddLayer adds a layer, optionally selecting it.
func (v *ViewerState) AddLayer(layer Layer, selected ...bool) error {
	sel := len(selected) > 0 && selected[0]
	return v.AddLayers([]Layer{layer}, sel)
}

// AddLayers adds layers.  If given, selected has one flag per layer and at most
// one layer may be selected.
func (v *ViewerState) AddLayers(layers []Layer, selected ...bool) error {
	if len(selected) > 0 && len(selected) != len(layers) {
		return ngstate.Validationf("%d selection flags given for %d layers", len(selected), len(layers))
	}
	var chosen Layer
	for i, l := range layers {
		if l == nil {
			return ngstate.Typef("nil layer at position %d", i)
		}
		if len(selected) > 0 && selected[i] {
			if chosen != nil {
				return ngstate.Validationf("only one layer can be selected, got %q and %q", chosen.Name(), l.Name())
			}
			chosen = l
		}
	}
	v.layers.Append(layers...)
	if chosen != nil {
		v.selected = &SelectedLayer{Name: chosen.Name(), Visible: true}
	}
	v.invalidateSources()
	return nil
}

// Dimensions returns the viewer coordinate space, if set.
func (v *ViewerState) Dimensions() *CoordSpace {
	return v.dimensions
}

// SetDimensions sets the viewer coordinate space.
func (v *ViewerState) SetDimensions(cs *CoordSpace) {
	if v.dimensions.Equals(cs) {
		return
	}
	v.dimensions = cs
	v.Invalidate()
}

// SetResolution sets x, y, z viewer dimensions in nanometers.
func (v *ViewerState) SetResolution(resolution ...float64) error {
	cs, err := NewCoordSpace(resolution)
	if err != nil {
		return err
	}
	v.SetDimensions(cs)
	return nil
}

// Position returns the view center in viewer voxel coordinates, if set.
func (v *ViewerState) Position() ngstate.NdFloat64 {
	return v.position.Duplicate()
}

// SetPosition sets the view center in viewer voxel coordinates.  Nil clears it.
func (v *ViewerState) SetPosition(position ngstate.NdFloat64) {
	if v.position.Equals(position) && (v.position == nil) == (position == nil) {
		return
	}
	v.position = position.Duplicate()
	v.Invalidate()
}

// SetScaleImagery sets the cross-section zoom.
func (v *ViewerState) SetScaleImagery(scale float64) {
	if v.scaleImagery == scale {
		return
	}
	v.scaleImagery = scale
	v.Invalidate()
}

// SetScale3D sets the 3d panel zoom.
func (v *ViewerState) SetScale3D(scale float64) {
	if v.scale3D == scale {
		return
	}
	v.scale3D = scale
	v.Invalidate()
}

// Layout returns the panel layout.
func (v *ViewerState) Layout() Layout {
	return v.layout
}

// SetLayout sets the panel layout, given as a Layout or its name.
func (v *ViewerState) SetLayout(layout string) error {
	l, err := ParseLayout(layout)
	if err != nil {
		return err
	}
	if l == v.layout {
		return nil
	}
	v.layout = l
	v.Invalidate()
	return nil
}

// SetSelectedLayer sets the layer shown in the side panel.  An empty name
// clears the selection.
func (v *ViewerState) SetSelectedLayer(name string, visible bool) {
	var sel *SelectedLayer
	if name != "" {
		sel = &SelectedLayer{Name: name, Visible: visible}
	}
	if (sel == nil && v.selected == nil) || (sel != nil && v.selected != nil && *sel == *v.selected) {
		return
	}
	v.selected = sel
	v.Invalidate()
}

// SetShowSlices sets whether cross sections are drawn in the 3d panel.
func (v *ViewerState) SetShowSlices(show bool) {
	if v.showSlices == show {
		return
	}
	v.showSlices = show
	v.Invalidate()
}

// Interactive returns true if the state is served by a live viewer.
func (v *ViewerState) Interactive() bool {
	return v.interactive
}

// SetInteractive marks the state as served by a live viewer.
func (v *ViewerState) SetInteractive(interactive bool) {
	if v.interactive == interactive {
		return
	}
	v.interactive = interactive
	v.Invalidate()
}

// InferCoordinates returns true if unset dimensions and position are taken
// from the first volume source.
func (v *ViewerState) InferCoordinates() bool {
	return v.inferCoordinates
}

// SetInferCoordinates sets whether unset dimensions and position are taken
// from the first volume source through the SourceInspector.
func (v *ViewerState) SetInferCoordinates(infer bool) {
	if v.inferCoordinates == infer {
		return
	}
	v.inferCoordinates = infer
	v.Invalidate()
}

// SetBaseState sets fields merged into the serialized state.
func (v *ViewerState) SetBaseState(base map[string]interface{}) {
	v.baseState = base
	v.Invalidate()
}

// ClientLayerOptions choose the layers made by AddLayersFromClient.
type ClientLayerOptions struct {
	SkipImagery      bool
	SkipSegmentation bool
	SkeletonSource   bool

	// ImageName and SegmentationName default to "imagery" and "segmentation".
	ImageName        string
	SegmentationName string

	// SelectSegmentation selects the segmentation layer.
	SelectSegmentation bool
}

// AddLayersFromClient adds image and segmentation layers for the dataset
// defaults of an info service.  The client is kept for later calls; a nil
// client uses the one kept.  Sources missing from the info are skipped, and the
// default resolution sets the dimensions if they are unset.
func (v *ViewerState) AddLayersFromClient(ctx context.Context, client InfoClient, opts ClientLayerOptions) error {
	if client == nil {
		client = v.infoClient
	}
	if client == nil {
		return ngstate.Preconditionf("no info client given or previously set")
	}
	v.infoClient = client
	info, err := client.DatasetInfo(ctx)
	if err != nil {
		return err
	}
	var layers []Layer
	var selected []bool
	if !opts.SkipImagery && info.ImageSource != "" {
		name := opts.ImageName
		if name == "" {
			name = "imagery"
		}
		img, err := NewImageLayer(name, info.ImageSource)
		if err != nil {
			return err
		}
		layers = append(layers, img)
		selected = append(selected, false)
	}
	if !opts.SkipSegmentation && info.SegmentationSource != "" {
		name := opts.SegmentationName
		if name == "" {
			name = "segmentation"
		}
		seg, err := NewSegmentationLayer(name, info.SegmentationSource)
		if err != nil {
			return err
		}
		if opts.SkeletonSource && info.SkeletonSource != "" {
			seg.AddSkeletonSource(info.SkeletonSource)
		}
		layers = append(layers, seg)
		selected = append(selected, opts.SelectSegmentation)
	}
	if v.dimensions == nil && len(info.ViewerResolution) > 0 {
		cs, err := NewCoordSpace(info.ViewerResolution)
		if err != nil {
			return err
		}
		v.SetDimensions(cs)
	}
	if len(layers) == 0 {
		ngstate.Warningf("info service gave no image or segmentation sources\n")
		return nil
	}
	return v.AddLayers(layers, selected...)
}

// SourceInfo returns the description of the first image source, or of the
// first segmentation source if there is no image layer.  The result is memoized
// while that source stays the same.
func (v *ViewerState) SourceInfo(ctx context.Context) (*SourceInfo, error) {
	url := v.inspectedSource()
	if v.sourceInfo != nil && url == v.sourceURL {
		return v.sourceInfo, nil
	}
	if v.inspector == nil {
		return nil, ngstate.Preconditionf("no source inspector set")
	}
	if url == "" {
		return nil, ngstate.Preconditionf("no image or segmentation source to inspect")
	}
	info, err := v.inspector.Inspect(ctx, url)
	if err != nil {
		return nil, err
	}
	v.sourceInfo = info
	v.sourceURL = url
	return info, nil
}

func (v *ViewerState) inspectedSource() string {
	if url := v.firstSource(ImageLayerType); url != "" {
		return url
	}
	return v.firstSource(SegmentationLayerType)
}

// staleInference is true if inferred coordinates came from a source that is no
// longer the one inspected.
func (v *ViewerState) staleInference() bool {
	if !v.inferCoordinates || (v.dimensions != nil && v.position != nil) {
		return false
	}
	return v.inspectedSource() != v.sourceURL
}

func (v *ViewerState) firstSource(t LayerType) string {
	for _, l := range v.layers.items {
		if l.Type() != t {
			continue
		}
		for _, s := range l.base().sources {
			return s.URL
		}
	}
	return ""
}

// SuggestResolution returns the resolution of the inspected source.
func (v *ViewerState) SuggestResolution(ctx context.Context) (ngstate.NdFloat64, error) {
	info, err := v.SourceInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.Resolution.Duplicate(), nil
}

// SuggestPosition returns the center of the inspected source in viewer voxel
// coordinates.
func (v *ViewerState) SuggestPosition(ctx context.Context) (ngstate.NdFloat64, error) {
	info, err := v.SourceInfo(ctx)
	if err != nil {
		return nil, err
	}
	center := info.Center()
	if v.dimensions == nil {
		return center, nil
	}
	factor, err := info.Resolution.Ratio(v.dimensions.Resolution())
	if err != nil {
		return nil, err
	}
	for i := range center {
		center[i] *= factor[i]
	}
	return center, nil
}

// ToNeuroglancerState returns the viewer state.  Values shared with the memoized
// viewer-level state must not be modified; use ToDict for a copy.  If
// coordinates are inferred, the source is inspected without a deadline unless
// SourceInfo was called first.
func (v *ViewerState) ToNeuroglancerState() (map[string]interface{}, error) {
	var errs error
	for _, l := range v.layers.items {
		errs = multierr.Append(errs, l.base().datamaps.check(l.Name()))
	}
	if errs != nil {
		return nil, errs
	}
	global, dims, err := v.globalState()
	if err != nil {
		return nil, err
	}
	state := make(map[string]interface{}, len(global)+1)
	for k, val := range global {
		state[k] = val
	}

	wctx := &wireContext{dimensions: dims}
	layers := make([]interface{}, 0, v.layers.Len())
	for _, l := range v.layers.items {
		wire, err := serializeLayer(l, wctx)
		if err != nil {
			return nil, err
		}
		layers = append(layers, wire)
	}
	state["layers"] = layers
	return state, nil
}

// globalState returns the memoized state without its layers, and the viewer
// dimensions used for it.
func (v *ViewerState) globalState() (map[string]interface{}, *CoordSpace, error) {
	if v.cache != nil && !v.staleInference() {
		return v.cache, v.cacheDims, nil
	}
	state := make(map[string]interface{})
	if v.baseState != nil {
		state = deepCopy(v.baseState).(map[string]interface{})
	}
	ctx := context.Background()
	dims := v.dimensions
	if dims == nil && v.inferCoordinates {
		res, err := v.SuggestResolution(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("inferring dimensions: %w", err)
		}
		if dims, err = NewCoordSpace(res); err != nil {
			return nil, nil, err
		}
	}
	if dims != nil {
		wire, err := dims.ToWire()
		if err != nil {
			return nil, nil, err
		}
		state["dimensions"] = wire
	}
	position := v.position
	if position == nil && v.inferCoordinates {
		var err error
		if position, err = v.SuggestPosition(ctx); err != nil {
			return nil, nil, fmt.Errorf("inferring position: %w", err)
		}
	}
	if position != nil {
		state["position"] = []float64(position.Duplicate())
	}
	state["crossSectionScale"] = v.scaleImagery
	state["projectionScale"] = v.scale3D
	state["layout"] = string(v.layout)
	state["showSlices"] = v.showSlices
	delete(state, "layers")
	if v.selected != nil {
		state["selectedLayer"] = map[string]interface{}{
			"layer":   v.selected.Name,
			"visible": v.selected.Visible,
		}
	}
	v.cache = state
	v.cacheDims = dims
	return state, dims, nil
}

// ToDict returns the viewer state decoded from its JSON, free of any typed values.
func (v *ViewerState) ToDict() (map[string]interface{}, error) {
	b, err := v.toJSON("")
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToJSONString returns the viewer state as JSON, indented by the given number of
// spaces if positive.
func (v *ViewerState) ToJSONString(indent int) (string, error) {
	var prefix string
	if indent > 0 {
		prefix = strings.Repeat(" ", indent)
	}
	b, err := v.toJSON(prefix)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (v *ViewerState) toJSON(indent string) ([]byte, error) {
	state, err := v.ToNeuroglancerState()
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return json.Marshal(state)
	}
	return json.MarshalIndent(state, "", indent)
}

func (v *ViewerState) links() LinkMaker {
	if v.linkMaker != nil {
		return v.linkMaker
	}
	return siteLinks{site: v.site}
}

// ToURL returns a viewer URL for the state, shortened through the link maker if
// requested.
func (v *ViewerState) ToURL(ctx context.Context, shorten bool) (string, error) {
	if v.interactive {
		return "", ngstate.Preconditionf("interactive states are served by a live viewer, not a URL")
	}
	stateJSON, err := v.ToJSONString(0)
	if err != nil {
		return "", err
	}
	if shorten {
		return v.links().Shorten(ctx, stateJSON)
	}
	return v.links().URL(stateJSON)
}

// ToLink returns an HTML anchor for the state URL.
func (v *ViewerState) ToLink(ctx context.Context, text string, shorten bool) (string, error) {
	u, err := v.ToURL(ctx, shorten)
	if err != nil {
		return "", err
	}
	return HTMLLink(u, text), nil
}

// WithDatamap returns an independent copy of the state with every layer's
// DataMaps filled from values.  A nil mapping returns the state itself.  Keys
// used by no layer are logged.
func (v *ViewerState) WithDatamap(values interface{}) (*ViewerState, error) {
	dv := toDataValues(values)
	if dv == nil {
		return v, nil
	}
	used := make(map[string]bool)
	mapped := make([]Layer, v.layers.Len())
	for i, l := range v.layers.items {
		for _, k := range l.DatamapKeys() {
			used[k] = true
		}
		dup, err := mapLayer(l, dv)
		if err != nil {
			return nil, err
		}
		mapped[i] = dup
	}
	for k := range dv {
		if !used[k] {
			ngstate.Warningf("datamap key %q is used by no layer\n", k)
		}
	}
	dup := *v
	dup.layers = NewNamedList[Layer]()
	dup.layers.items = mapped
	dup.layers.index = make(map[string]int, len(mapped))
	for i := len(mapped) - 1; i >= 0; i-- {
		dup.layers.index[mapped[i].Name()] = i
	}
	dup.position = v.position.Duplicate()
	if v.selected != nil {
		sel := *v.selected
		dup.selected = &sel
	}
	if v.baseState != nil {
		dup.baseState = deepCopy(v.baseState).(map[string]interface{})
	}
	dup.cache = nil
	dup.cacheDims = nil
	dup.sourceInfo = nil
	dup.sourceURL = ""
	return &dup, nil
}

// Map fills every layer's DataMaps from values, in place or on a copy.
func (v *ViewerState) Map(values interface{}, inplace bool) (*ViewerState, error) {
	mapped, err := v.WithDatamap(values)
	if err != nil || !inplace {
		return mapped, err
	}
	*v = *mapped
	return v, nil
}
