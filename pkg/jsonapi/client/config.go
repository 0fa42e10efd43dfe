package client

import (
	"context"
	"io"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	BaseURL  string            `yaml:"baseURL"`
	BasePath string            `yaml:"basePath"`
	Debug    bool              `yaml:"debug"`
	Headers  map[string]string `yaml:"headers"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{BasePath: DefaultBasePath}
	err = yaml.Unmarshal(buf, cfg)

	return cfg, err
}

// ConfigFromEnvironment reads JSONAPI_BASE_URL, JSONAPI_BASE_PATH and JSONAPI_DEBUG
func ConfigFromEnvironment(ctx context.Context) *Config {
	return &Config{
		BaseURL:  env.GetVariableOrDefault(ctx, "JSONAPI_BASE_URL", "http://localhost:8080"),
		BasePath: env.GetVariableOrDefault(ctx, "JSONAPI_BASE_PATH", DefaultBasePath),
		Debug:    env.GetVariableOrDefault(ctx, "JSONAPI_DEBUG", "false") == "true",
	}
}

func NewFromConfig(cfg *Config, options ...func(*jsonapiClient)) Client {
	opts := []func(*jsonapiClient){BasePath(cfg.BasePath)}

	if cfg.Debug {
		opts = append(opts, Debug("true"))
	}

	for name, value := range cfg.Headers {
		opts = append(opts, Header(name, value))
	}

	return New(cfg.BaseURL, append(opts, options...)...)
}
