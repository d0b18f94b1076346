/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package channel

import (
	"context"

	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
)

type Config struct {
	Email *EmailConfig `json:"email,omitempty" yaml:"email"`
}

type EmailConfig struct {
	SMTPHost string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `json:"smtp_port" yaml:"smtp_port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	UseTLS   bool   `json:"use_tls" yaml:"use_tls"`
}

// ReadConfig builds the channel configuration from the system-wide
// notification settings.
func ReadConfig() *Config {
	c := &Config{}
	if commonconfig.GetSMTPHost() != "" {
		c.Email = &EmailConfig{
			SMTPHost: commonconfig.GetSMTPHost(),
			SMTPPort: commonconfig.GetSMTPPort(),
			Username: commonconfig.GetSMTPUsername(),
			Password: commonconfig.GetSMTPPassword(),
			From:     commonconfig.GetSMTPFrom(),
			UseTLS:   commonconfig.IsSMTPUseTLS(),
		}
	}
	return c
}

type Channel interface {
	Init(cfg Config) error
	Name() string
	Send(ctx context.Context, message *model.Message) error
}

// InitChannels initializes all notification channels from the configuration.
// The webhook channel needs no configuration; its targets come from the
// alert settings per message.
func InitChannels(ctx context.Context, conf *Config) (map[string]Channel, error) {
	channels := make(map[string]Channel)
	if conf.Email != nil {
		emailChannel := &EmailChannel{}
		if err := emailChannel.Init(*conf); err != nil {
			return nil, err
		}
		channels[emailChannel.Name()] = emailChannel
	}
	webhookChannel := &WebhookChannel{}
	if err := webhookChannel.Init(*conf); err != nil {
		return nil, err
	}
	channels[webhookChannel.Name()] = webhookChannel
	return channels, nil
}
