package domain

import (
	"fmt"
	"slices"
	"strconv"
)

// Composition constants exported to the daemon as Application1 properties.
const (
	CompanyID uint16 = 0x0136
	ProductID uint16 = 0x0255
	VersionID uint16 = 0x0001
)

// Addressing constants.
const (
	// LocalUnicastAddress is the primary element address assigned on import.
	LocalUnicastAddress uint16 = 0x0042

	// DeviceKeyIndex is the key index that tells the daemon to use the
	// device key of the destination instead of an application key.
	DeviceKeyIndex uint16 = 0x7fff

	// MaxKeyIndex is the largest valid 12-bit application key index.
	MaxKeyIndex uint16 = 0x0fff
)

// VendorModel identifies a vendor-specific model.
type VendorModel struct {
	CompanyID uint16
	ModelID   uint16
}

// Element is a local addressable endpoint of the node.
type Element struct {
	Index        uint8
	Location     uint16
	Models       []uint16
	VendorModels []VendorModel
}

// NewElements validates and freezes an element list. Indexes must be
// 0..n-1 in order and model identifiers must not repeat within an element.
func NewElements(elements []Element) ([]Element, error) {
	if len(elements) == 0 {
		return nil, ErrInvalidArgument.WithDetails("node needs at least one element")
	}
	if len(elements) > 0xff {
		return nil, ErrInvalidArgument.WithDetails("too many elements")
	}
	out := make([]Element, len(elements))
	for i, e := range elements {
		if int(e.Index) != i {
			return nil, ErrInvalidArgument.WithDetails(fmt.Sprintf("element %d has index %d", i, e.Index))
		}
		models := slices.Clone(e.Models)
		sorted := slices.Clone(models)
		slices.Sort(sorted)
		if len(slices.Compact(sorted)) != len(models) {
			return nil, ErrInvalidArgument.WithDetails(fmt.Sprintf("element %d lists a model twice", i))
		}
		out[i] = Element{
			Index:        e.Index,
			Location:     e.Location,
			Models:       models,
			VendorModels: slices.Clone(e.VendorModels),
		}
	}
	return out, nil
}

// DefaultElements is a single primary element carrying the
// Configuration Server model.
func DefaultElements() []Element {
	return []Element{{Index: 0, Location: 0x0000, Models: []uint16{0x0000}}}
}

// ModelConfig is the per-model configuration reported by the daemon.
type ModelConfig struct {
	ModelID uint16
	Options map[string]any
}

// ElementConfig is the configuration of one element reported by the daemon.
type ElementConfig struct {
	Index  uint8
	Models []ModelConfig
}

// AttachResult is what the daemon returns on a successful attach.
type AttachResult struct {
	// NodePath is the bus path of the Node1 object used for Send.
	NodePath      string
	Configuration []ElementConfig
}

// ElementPath returns the bus path of element index under appPath.
func ElementPath(appPath string, index uint8) string {
	return appPath + "/" + strconv.Itoa(int(index))
}
