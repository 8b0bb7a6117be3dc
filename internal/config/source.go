package config

import (
	"fmt"
	"strings"

	"github.com/speedwagon-io/co2hook/internal/model"
)

// SourceConfig is the on-disk form of the acquisition source. Kind selects
// which of the remaining fields are meaningful.
type SourceConfig struct {
	Kind          string `yaml:"kind" env:"SOURCE_KIND"`
	Port          string `yaml:"port" env:"SOURCE_PORT"`
	URL           string `yaml:"url" env:"SOURCE_URL"`
	Authorization string `yaml:"authorization" env:"SOURCE_AUTHORIZATION"`
	Key           string `yaml:"key" env:"SOURCE_KEY"`
}

// Resolve validates the fields required by Kind and returns the matching
// model.Source variant.
func (s SourceConfig) Resolve() (model.Source, error) {
	switch model.Kind(s.Kind) {
	case model.KindSerial:
		if err := required("port", s.Port); err != nil {
			return nil, err
		}
		return model.SerialSource{Port: s.Port}, nil

	case model.KindHTTPGet:
		for _, f := range []struct{ name, value string }{
			{"url", s.URL},
			{"authorization", s.Authorization},
			{"key", s.Key},
		} {
			if err := required(f.name, f.value); err != nil {
				return nil, err
			}
		}
		return model.HTTPGetSource{
			URL:           s.URL,
			Authorization: s.Authorization,
			Key:           s.Key,
		}, nil

	default:
		return nil, model.NewError(model.CategoryConfig, model.ErrUnknownKind, fmt.Errorf("kind %q", s.Kind))
	}
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return model.NewError(model.CategoryConfig, model.ErrMissingField, fmt.Errorf("field %q", name))
	}
	return nil
}
