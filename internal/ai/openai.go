package ai

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Dimensions int    `json:"dimensions"`
}

func newOpenAIProvider(args interface{}) (*compatProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return newCompatProvider("openai", cfg.BaseURL, cfg.APIKey, nil, cfg.Dimensions), nil
}

func init() {
	Register("openai", func(args interface{}) (IAIProvider, error) {
		p, err := newOpenAIProvider(args)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		p, err := newOpenAIProvider(args)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
