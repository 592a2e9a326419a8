package module

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeSettings decodes an opaque settings payload into a module's typed
// settings struct. Duration fields accept strings like "15s" so payloads can
// come straight from a YAML config file.
func DecodeSettings(config map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("build settings decoder: %w", err)
	}
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}
