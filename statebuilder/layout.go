package statebuilder

import (
	"encoding/json"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// Layout is the panel arrangement of the viewer.
type Layout string

const (
	LayoutXY        Layout = "xy"
	LayoutYZ        Layout = "yz"
	LayoutXZ        Layout = "xz"
	LayoutXY3D      Layout = "xy-3d"
	LayoutXZ3D      Layout = "xz-3d"
	LayoutYZ3D      Layout = "yz-3d"
	Layout4Panel    Layout = "4panel"
	Layout3D        Layout = "3d"
	Layout4PanelAlt Layout = "4panel-alt"
)

// Layouts are all valid layouts.
var Layouts = []Layout{
	LayoutXY, LayoutYZ, LayoutXZ, LayoutXY3D, LayoutXZ3D, LayoutYZ3D,
	Layout4Panel, Layout3D, Layout4PanelAlt,
}

// DefaultLayout is the layout of a new ViewerState.
const DefaultLayout = LayoutXY3D

// ParseLayout returns the Layout for a string, or an ErrValidation error.
func ParseLayout(s string) (Layout, error) {
	for _, l := range Layouts {
		if string(l) == s {
			return l, nil
		}
	}
	return "", ngstate.Validationf("unknown layout %q, expected one of %v", s, Layouts)
}

// MarshalJSON writes the layout name.
func (l Layout) MarshalJSON() ([]byte, error) {
	if _, err := ParseLayout(string(l)); err != nil {
		return nil, err
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON reads and validates the layout name.
func (l *Layout) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	layout, err := ParseLayout(s)
	if err != nil {
		return err
	}
	*l = layout
	return nil
}
