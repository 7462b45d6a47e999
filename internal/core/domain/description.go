package domain

import (
	"encoding/json"
	"fmt"
)

// Placeholder keys used when importing a node description. They are not
// secret: the imported node only talks to itself until it is configured.
const (
	PlaceholderDeviceKey  = "56325fd145f3d5eee1b82136dc3e1454"
	PlaceholderNetworkKey = "9a17cbec499b4151ae045ac6f259bf43"
)

// NodeDescription is the JSON document passed to ImportLocalNode.
type NodeDescription struct {
	CID            string                       `json:"cid"`
	PID            string                       `json:"pid"`
	VID            string                       `json:"vid"`
	IVIndex        uint32                       `json:"IVindex"`
	IVUpdate       uint8                        `json:"IVupdate"`
	UnicastAddress string                       `json:"unicastAddress"`
	DeviceKey      string                       `json:"deviceKey"`
	Elements       map[uint8]ElementDescription `json:"elements"`
	NetKeys        map[uint16]NetKeyDescription `json:"netKeys"`
}

// ElementDescription describes one element inside a NodeDescription.
type ElementDescription struct {
	Location string              `json:"location"`
	Models   map[string]struct{} `json:"models"`
}

// NetKeyDescription describes one network key inside a NodeDescription.
type NetKeyDescription struct {
	KeyRefresh uint8  `json:"keyRefresh"`
	Key        string `json:"key"`
}

// DescribeNode builds the import document for the given elements.
func DescribeNode(elements []Element) NodeDescription {
	desc := NodeDescription{
		CID:            hex16(CompanyID),
		PID:            hex16(ProductID),
		VID:            hex16(VersionID),
		IVIndex:        0,
		IVUpdate:       0,
		UnicastAddress: hex16(LocalUnicastAddress),
		DeviceKey:      PlaceholderDeviceKey,
		Elements:       make(map[uint8]ElementDescription, len(elements)),
		NetKeys: map[uint16]NetKeyDescription{
			0: {KeyRefresh: 0, Key: PlaceholderNetworkKey},
		},
	}
	for _, e := range elements {
		models := make(map[string]struct{}, len(e.Models))
		for _, m := range e.Models {
			models[hex16(m)] = struct{}{}
		}
		desc.Elements[e.Index] = ElementDescription{
			Location: hex16(e.Location),
			Models:   models,
		}
	}
	return desc
}

// JSON encodes the description. Map keys are emitted in sorted order.
func (d NodeDescription) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", ErrInternal.WithDetails("encode node description").WithCause(err)
	}
	return string(b), nil
}

func hex16(v uint16) string {
	return fmt.Sprintf("%04x", v)
}
