package meshd

import (
	"github.com/godbus/dbus/v5"

	"github.com/yndnr/meshnode-go/internal/core/domain"
)

// wireModelConfig is one (q a{sv}) entry of the Attach reply.
type wireModelConfig struct {
	ModelID uint16
	Options map[string]dbus.Variant
}

// wireElementConfig is one (y a(qa{sv})) entry of the Attach reply.
type wireElementConfig struct {
	Index  byte
	Models []wireModelConfig
}

func decodeConfiguration(in []wireElementConfig) []domain.ElementConfig {
	out := make([]domain.ElementConfig, 0, len(in))
	for _, e := range in {
		ec := domain.ElementConfig{
			Index:  e.Index,
			Models: make([]domain.ModelConfig, 0, len(e.Models)),
		}
		for _, m := range e.Models {
			ec.Models = append(ec.Models, domain.ModelConfig{
				ModelID: m.ModelID,
				Options: decodeOptions(m.Options),
			})
		}
		out = append(out, ec)
	}
	return out
}

// decodeOptions unwraps variant values, recursing into nested dictionaries.
func decodeOptions(in map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = unwrapVariant(v.Value())
	}
	return out
}

func unwrapVariant(v any) any {
	switch x := v.(type) {
	case dbus.Variant:
		return unwrapVariant(x.Value())
	case map[string]dbus.Variant:
		return decodeOptions(x)
	default:
		return v
	}
}
