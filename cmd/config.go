// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/Thermoquad/fluctus-relay/pkg/relay"
)

// loadRelayConfig layers the MQTT settings: config file, dotenv file and
// environment, then command line flags
func loadRelayConfig() (*relay.Config, error) {
	cfg, err := relay.ReadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	applyRelayFlags(cfg)

	if cfg.Username != "" && cfg.Password == "" {
		password, err := GetPassword()
		if err != nil {
			return nil, err
		}
		cfg.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyRelayFlags overrides cfg with any MQTT flags given on the command line
func applyRelayFlags(cfg *relay.Config) {
	if brokerAddr != "" {
		cfg.Broker = brokerAddr
	}
	if topicBase != "" {
		cfg.TopicBase = topicBase
	}
	if deviceName != "" {
		cfg.Name = deviceName
	}
}
