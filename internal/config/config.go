// Package config loads service configuration from a JSON file backend
// with environment variable overrides.
package config

type Config struct {
	Server    ServerConfig
	Chroma    ChromaConfig
	Ollama    OllamaConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

type ChromaConfig struct {
	Host       string
	Port       int
	Collection string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
	ToolModel  string
}

type RetrievalConfig struct {
	NResults int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Chroma: ChromaConfig{
			Host:       "localhost",
			Port:       8087,
			Collection: "iobroker_events",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			ToolModel:  "gemma3:4b",
		},
		Retrieval: RetrievalConfig{
			NResults: 10,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/heimdex/config.json, then applies HEIMDEX_* environment
// variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	return cfg, nil
}
