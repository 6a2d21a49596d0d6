package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Providers struct {
		Nominatim struct {
			BaseURL     string        `mapstructure:"baseURL"`
			Timeout     time.Duration `mapstructure:"timeout"`
			MinInterval time.Duration `mapstructure:"minInterval"`
		} `mapstructure:"nominatim"`
		OSRM struct {
			BaseURL string        `mapstructure:"baseURL"`
			Timeout time.Duration `mapstructure:"timeout"`
		} `mapstructure:"osrm"`
		Wikipedia struct {
			BaseURL     string        `mapstructure:"baseURL"`
			Timeout     time.Duration `mapstructure:"timeout"`
			MinInterval time.Duration `mapstructure:"minInterval"`
		} `mapstructure:"wikipedia"`
	} `mapstructure:"providers"`
	Pipeline struct {
		// RequireConfirmation gates finalization: when true the pipeline stops
		// at preview_ready and the user confirms before the PDF is produced.
		RequireConfirmation bool   `mapstructure:"requireConfirmation"`
		OutputDir           string `mapstructure:"outputDir"`
	} `mapstructure:"pipeline"`
	Renderer struct {
		ChromiumPath string        `mapstructure:"chromiumPath"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"renderer"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
