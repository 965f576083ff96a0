package parser

import (
	"fmt"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// MulticutSides names the two sides of a multicut in marker order.
var MulticutSides = []string{"source", "sink"}

// Multicut holds the markers of a pending split of one segment.
type Multicut struct {
	Points []ngstate.Vector3d
	Sides  []string

	// SupervoxelIDs is 0 where a marker did not select a supervoxel.
	SupervoxelIDs []uint64

	RootID uint64
}

// ExtractMulticut reads the source and sink graph operation markers of a
// segmentation layer.  If segLayer is empty, the state must have exactly one
// segmentation layer.  A layer without markers gives an empty multicut.
func ExtractMulticut(s State, segLayer string) (*Multicut, error) {
	if segLayer == "" {
		names := SegmentationLayers(s, true)
		switch len(names) {
		case 0:
			return nil, ngstate.NotFoundf("no segmentation layer in state")
		case 1:
			segLayer = names[0]
		default:
			return nil, ngstate.Preconditionf("state has %d segmentation layers %v, one must be named", len(names), names)
		}
	}
	layer, err := GetLayer(s, segLayer)
	if err != nil {
		return nil, err
	}
	mc := &Multicut{}
	markers, _ := layer["graphOperationMarker"].([]interface{})
	for side, raw := range markers {
		if side >= len(MulticutSides) {
			break
		}
		marker, _ := raw.(map[string]interface{})
		annotations, _ := marker["annotations"].([]interface{})
		for i, ra := range annotations {
			a, ok := ra.(map[string]interface{})
			if !ok {
				continue
			}
			pt, err := vector(a["point"])
			if err != nil {
				return nil, fmt.Errorf("%s marker %d: %w", MulticutSides[side], i, err)
			}
			segs, err := flattenSegments(a["segments"])
			if err != nil {
				return nil, err
			}
			var svid, root uint64
			switch len(segs) {
			case 0:
			case 1:
				root = segs[0]
			default:
				svid, root = segs[0], segs[1]
			}
			if root != 0 {
				if mc.RootID != 0 && mc.RootID != root {
					return nil, ngstate.Validationf("multicut markers span root ids %d and %d", mc.RootID, root)
				}
				mc.RootID = root
			}
			mc.Points = append(mc.Points, pt)
			mc.Sides = append(mc.Sides, MulticutSides[side])
			mc.SupervoxelIDs = append(mc.SupervoxelIDs, svid)
		}
	}
	return mc, nil
}
