package ai

import "strings"

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// openrouter attributes traffic to an app through the optional HTTP-Referer and X-Title headers.
func newOpenRouterProvider(args interface{}) (*compatProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	headers := map[string]string{}
	if v := strings.TrimSpace(cfg.HTTPReferer); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.XTitle); v != "" {
		headers["X-Title"] = v
	}
	return newCompatProvider("openrouter", cfg.BaseURL, cfg.APIKey, headers, 0), nil
}

func init() {
	Register("openrouter", func(args interface{}) (IAIProvider, error) {
		p, err := newOpenRouterProvider(args)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	RegisterEmbed("openrouter", func(args interface{}) (IEmbedProvider, error) {
		p, err := newOpenRouterProvider(args)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
