package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/google/uuid"
)

type Config struct {
	Server     Server     `yaml:"server"`
	Validation Validation `yaml:"validation"`
	Limits     Limits     `yaml:"limits"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	NodeID        string `yaml:"nodeID"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Validation struct {
	ValidateOnCreate bool `yaml:"validateOnCreate"`
	ValidateOnUpdate bool `yaml:"validateOnUpdate"`
}

type Limits struct {
	SendBuffer      int   `yaml:"sendBuffer"`
	MaxMessageBytes int64 `yaml:"maxMessageBytes"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.NodeID == "" {
		c.Server.NodeID = uuid.NewString()
	}
	if c.Limits.SendBuffer <= 0 {
		c.Limits.SendBuffer = 256
	}
	if c.Limits.MaxMessageBytes <= 0 {
		c.Limits.MaxMessageBytes = 1 << 20
	}
}
