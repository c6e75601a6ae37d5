package config

import "fmt"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Audio   AudioConfig
	Log     LogConfig
}

type ServerConfig struct {
	// BaseURL is the companion service the client talks to.
	BaseURL string
	// Port is used by `solace serve` when running the local service.
	Port int
}

type StorageConfig struct {
	DataDir string
}

type AudioConfig struct {
	// SampleRate of captured PCM, in Hz.
	SampleRate int
	// Bins is the number of frequency bins rendered in the waveform.
	Bins int
	// Transcriber selects the speech-to-text backend: "demo" or "http".
	Transcriber string
	// TranscriberURL is the endpoint used when Transcriber is "http".
	TranscriberURL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8000",
			Port:    8000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Audio: AudioConfig{
			SampleRate:  16000,
			Bins:        32,
			Transcriber: "demo",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/solace/config.json and applies SOLACE_* environment
// variable overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	switch cfg.Audio.Transcriber {
	case "demo", "http":
	default:
		return Config{}, fmt.Errorf("invalid audio.transcriber %q: must be \"demo\" or \"http\"", cfg.Audio.Transcriber)
	}
	if cfg.Audio.Transcriber == "http" && cfg.Audio.TranscriberURL == "" {
		return Config{}, fmt.Errorf("audio.transcriber is \"http\" but audio.transcriber_url is not set")
	}

	return cfg, nil
}
