package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/ngstate/client"
	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/parser"
	"github.com/janelia-flyem/ngstate/segmentprops"
	"github.com/janelia-flyem/ngstate/sourceinfo"
)

// Version of the command.
const Version = "0.1.0"

// DoCommand serves as a switchboard for commands.
func DoCommand(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("Blank command!")
	}
	name, rest := args[0], args[1:]
	switch name {
	case "about":
		fmt.Fprintf(w, "ngstate %s\n", Version)
		return nil
	case "layers":
		return doLayers(w, rest)
	case "annotations":
		return doAnnotations(w, rest)
	case "multicut":
		return doMulticut(w, rest)
	case "segprops":
		return doSegprops(w, rest)
	case "link":
		return doLink(w, cfg, rest)
	case "info":
		return doInfo(w, cfg, rest)
	}
	return fmt.Errorf("unknown command %q, try 'ngstate help'", name)
}

// commandFlags returns a flag set that reports errors instead of exiting.
func commandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseArgs(fs *flag.FlagSet, args []string, positional ...string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %v", fs.Name(), err)
	}
	if fs.NArg() != len(positional) {
		return nil, fmt.Errorf("%s expects arguments <%s>", fs.Name(), strings.Join(positional, "> <"))
	}
	return fs.Args(), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func readState(filename string) (parser.State, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return parser.Parse(data)
}

func doLayers(w io.Writer, args []string) error {
	pos, err := parseArgs(commandFlags("layers"), args, "state.json")
	if err != nil {
		return err
	}
	s, err := readState(pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Dialect: %s\n", s.Dialect())
	if res, err := parser.Resolution(s); err == nil {
		fmt.Fprintf(w, "Resolution: %v nm\n", []float64(res))
	}
	if p, err := parser.Position(s); err == nil && p != nil {
		fmt.Fprintf(w, "Position: %v\n", p)
	}
	for _, name := range parser.ImageLayers(s, true) {
		fmt.Fprintf(w, "image        %s\n", name)
	}
	for _, name := range parser.SegmentationLayers(s, true) {
		fmt.Fprintf(w, "segmentation %s\n", name)
	}
	for _, name := range parser.AnnotationLayers(s, true) {
		var counts []string
		for _, kind := range parser.Kinds {
			annos, err := parser.KindAnnotations(s, name, kind, 0)
			if err != nil {
				return err
			}
			if annos.Len() > 0 {
				counts = append(counts, fmt.Sprintf("%s %s", humanize.Comma(int64(annos.Len())), kind))
			}
		}
		fmt.Fprintf(w, "annotation   %s (%s)\n", name, strings.Join(counts, ", "))
	}
	return nil
}

func doAnnotations(w io.Writer, args []string) error {
	fs := commandFlags("annotations")
	resolution := fs.String("resolution", "", "")
	expandTags := fs.Bool("expand-tags", false, "")
	splitPoints := fs.Bool("split-points", false, "")
	archived := fs.Bool("archived", false, "")
	pos, err := parseArgs(fs, args, "state.json", "out.arrow")
	if err != nil {
		return err
	}
	s, err := readState(pos[0])
	if err != nil {
		return err
	}
	opts := parser.FrameOptions{ExpandTags: *expandTags, SplitPoints: *splitPoints, IncludeArchived: *archived}
	if *resolution != "" {
		if opts.PointResolution, err = ngstate.StringToNdFloat64(*resolution, ","); err != nil {
			return ngstate.Validationf("bad resolution %q: %v", *resolution, err)
		}
	}
	rec, err := parser.AnnotationDataframe(s, opts)
	if err != nil {
		return err
	}
	defer rec.Release()
	n, err := dataframe.WriteFile(pos[1], rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s annotations (%s) to %s\n", humanize.Comma(rec.NumRows()), humanize.Bytes(uint64(n)), pos[1])
	return nil
}

func doMulticut(w io.Writer, args []string) error {
	fs := commandFlags("multicut")
	layer := fs.String("layer", "", "")
	pos, err := parseArgs(fs, args, "state.json")
	if err != nil {
		return err
	}
	s, err := readState(pos[0])
	if err != nil {
		return err
	}
	mc, err := parser.ExtractMulticut(s, *layer)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Root %d\n", mc.RootID)
	for i, pt := range mc.Points {
		fmt.Fprintf(w, "%-6s %s supervoxel %d\n", mc.Sides[i], pt, mc.SupervoxelIDs[i])
	}
	return nil
}

func doSegprops(w io.Writer, args []string) error {
	fs := commandFlags("segprops")
	var opts segmentprops.FrameOptions
	fs.StringVar(&opts.IDCol, "id-col", segmentprops.DefaultIDCol, "")
	fs.StringVar(&opts.LabelCol, "label-col", "", "")
	fs.StringVar(&opts.DescriptionCol, "description-col", "", "")
	stringCols := fs.String("string-cols", "", "")
	numberCols := fs.String("number-cols", "", "")
	tagValueCols := fs.String("tag-value-cols", "", "")
	tagBoolCols := fs.String("tag-bool-cols", "", "")
	pos, err := parseArgs(fs, args, "table.arrow", "out.json")
	if err != nil {
		return err
	}
	opts.StringCols = splitList(*stringCols)
	opts.NumberCols = splitList(*numberCols)
	opts.TagValueCols = splitList(*tagValueCols)
	opts.TagBoolCols = splitList(*tagBoolCols)

	rec, err := dataframe.ReadFile(pos[0])
	if err != nil {
		return err
	}
	defer rec.Release()
	props, err := segmentprops.FromDataframe(rec, opts)
	if err != nil {
		return err
	}
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if err := os.WriteFile(pos[1], data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s segments with %d properties (%s) to %s\n",
		humanize.Comma(int64(props.Len())), len(props.Properties()), humanize.Bytes(uint64(len(data))), pos[1])
	for _, info := range props.PropertyDescription() {
		fmt.Fprintf(w, "  %s\n", info)
	}
	return nil
}

func doLink(w io.Writer, cfg *config.Config, args []string) error {
	fs := commandFlags("link")
	shorten := fs.Bool("shorten", false, "")
	pos, err := parseArgs(fs, args, "state.json")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(pos[0])
	if err != nil {
		return err
	}
	// Compact the state so the URL carries no formatting.
	var state interface{}
	if err := json.Unmarshal(data, &state); err != nil {
		return ngstate.Typef("bad state in %q: %v", pos[0], err)
	}
	compact, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, links, err := client.New(cfg, *siteName)
	if err != nil {
		return err
	}
	var u string
	if *shorten {
		u, err = links.Shorten(context.Background(), string(compact))
	} else {
		u, err = links.URL(string(compact))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, u)
	return nil
}

// newInspector returns a source inspector using the configured caches.  The
// returned function closes any disk cache.
func newInspector(cfg *config.Config) (*sourceinfo.Inspector, func(), error) {
	if cfg.CacheDir() == "" {
		return sourceinfo.New(cfg.SourceInfoCacheBytes()), func() {}, nil
	}
	dc, err := sourceinfo.OpenDiskCache(cfg.CacheDir())
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := dc.Close(); err != nil {
			ngstate.Errorf("Unable to close disk cache: %v\n", err)
		}
	}
	return sourceinfo.New(cfg.SourceInfoCacheBytes(), sourceinfo.WithDiskCache(dc)), closer, nil
}

func doInfo(w io.Writer, cfg *config.Config, args []string) error {
	pos, err := parseArgs(commandFlags("info"), args, "source")
	if err != nil {
		return err
	}
	in, closer, err := newInspector(cfg)
	if err != nil {
		return err
	}
	defer closer()

	ctx := context.Background()
	vol, err := in.Volume(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s volume, %s x %d channel(s)\n", vol.VolumeType, vol.DataType, vol.NumChannels)
	for _, scale := range vol.Scales {
		voxels := int64(1)
		for _, n := range scale.Size {
			voxels *= n
		}
		fmt.Fprintf(w, "  %-12s resolution %v size %v (%s voxels)\n", scale.Key, scale.Resolution, scale.Size, humanize.Comma(voxels))
	}
	info, err := in.Inspect(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Center: %v\n", []float64(info.Center()))
	return nil
}
