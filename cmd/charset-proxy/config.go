package main

import (
	"os"

	responsetransformer "github.com/always-cache/charset-converter/pkg/response-transformer"

	"gopkg.in/yaml.v3"
)

// Config is the optional yaml configuration file.
// Flags given on the command line take precedence over its values.
type Config struct {
	Origin string                    `yaml:"origin"`
	Addr   string                    `yaml:"addr"`
	Host   string                    `yaml:"host"`
	Port   int                       `yaml:"port"`
	DB     string                    `yaml:"db"`
	Rules  responsetransformer.Rules `yaml:"rules"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// merge fills the fields of c that are empty from file.
func (c Config) merge(file Config) Config {
	if c.Origin == "" {
		c.Origin = file.Origin
	}
	if c.Addr == "" {
		c.Addr = file.Addr
	}
	if c.Host == "" {
		c.Host = file.Host
	}
	if c.Port == 0 {
		c.Port = file.Port
	}
	if c.DB == "" {
		c.DB = file.DB
	}
	c.Rules = append(c.Rules, file.Rules...)
	return c
}
