// Package hook reads the hook configuration file.
//
//	update-hooks:
//	  after:
//	    - https://example.com/model-updated
package hook

import (
	"net/url"
	"os"

	xe "github.com/opst/modelfab/pkg/errors"
	"gopkg.in/yaml.v3"
)

func Load(filename string) (Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, xe.Wrap(err)
	}
	return Unmarshal(content)
}

func Unmarshal(content []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, xe.Wrap(err)
	}
	return cfg, nil
}

type Config struct {
	// Update are hooks notified of outcomes of model updates.
	Update WebHook `yaml:"update-hooks,omitempty"`

	// Deploy are hooks notified of outcomes of deployments.
	Deploy WebHook `yaml:"deploy-hooks,omitempty"`
}

type WebHook struct {
	After []*url.URL
}

func (wh *WebHook) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		After []string `yaml:"after"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	wh.After = make([]*url.URL, len(raw.After))
	for i, u := range raw.After {
		parsed, err := url.Parse(u)
		if err != nil {
			return err
		}
		wh.After[i] = parsed
	}
	return nil
}
