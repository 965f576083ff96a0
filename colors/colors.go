/*
	Package colors resolves color specifications into the normalized "#rrggbb" form used
	by viewer documents.
*/
package colors

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// Parse converts a color specification into a lowercase "#rrggbb" string.
// Accepted specifications are CSS color names ("tomato"), hex strings with or
// without "#" in 3 or 6 digit form, float RGB triples with components in [0, 1],
// integer RGB triples with components in [0, 255], and color.Color values.
func Parse(c interface{}) (string, error) {
	switch v := c.(type) {
	case string:
		return parseString(v)
	case color.Color:
		r, g, b, _ := v.RGBA()
		return hex(uint8(r>>8), uint8(g>>8), uint8(b>>8)), nil
	case nil:
		return "", ngstate.Typef("nil color")
	}
	n, err := ngstate.Normalize(c)
	if err != nil {
		return "", err
	}
	list, ok := n.([]interface{})
	if !ok {
		return "", ngstate.Typef("can't parse color from %T", c)
	}
	if len(list) != 3 {
		return "", ngstate.Validationf("color triples need 3 components, got %d", len(list))
	}
	return parseTriple(list)
}

func parseTriple(list []interface{}) (string, error) {
	var comps [3]float64
	integral := true
	for i, elem := range list {
		switch x := elem.(type) {
		case float64:
			comps[i] = x
			integral = false
		case int64:
			comps[i] = float64(x)
		case uint64:
			comps[i] = float64(x)
		default:
			return "", ngstate.Typef("color component %v is not a number", elem)
		}
	}
	var rgb [3]uint8
	for i, f := range comps {
		if integral {
			if f < 0 || f > 255 {
				return "", ngstate.Validationf("integer color component %v outside [0, 255]", f)
			}
			rgb[i] = uint8(f)
			continue
		}
		if f < 0 || f > 1 {
			return "", ngstate.Validationf("float color component %v outside [0, 1]", f)
		}
		rgb[i] = uint8(math.Round(f * 255))
	}
	return hex(rgb[0], rgb[1], rgb[2]), nil
}

func parseString(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if rgba, found := colornames.Map[s]; found {
		return hex(rgba.R, rgba.G, rgba.B), nil
	}
	digits := strings.TrimPrefix(s, "#")
	switch len(digits) {
	case 3:
		var expanded strings.Builder
		for _, r := range digits {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		digits = expanded.String()
	case 6:
	default:
		return "", ngstate.Validationf("unknown color %q", s)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return "", ngstate.Validationf("unknown color %q", s)
	}
	return hex(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func hex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
