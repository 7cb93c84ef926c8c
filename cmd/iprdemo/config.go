package main

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultLedger          = "demo.ledger."
	defaultReceiverAccount = "demo.ledger.receiver"
	defaultAmount          = "10"
	defaultMaxSourceAmount = "11"
	defaultPayments        = 3
	defaultHoldSeconds     = "30"
)

type Config struct {
	Seed            string `yaml:"seed" envconfig:"SEED"`
	Ledger          string `yaml:"ledger" envconfig:"LEDGER"`
	ReceiverAccount string `yaml:"receiver_account" envconfig:"RECEIVER_ACCOUNT"`
	Amount          string `yaml:"amount" envconfig:"AMOUNT"`
	MaxSourceAmount string `yaml:"max_source_amount" envconfig:"MAX_SOURCE_AMOUNT"`
	MaxHoldSeconds  string `yaml:"max_hold_seconds" envconfig:"MAX_HOLD_SECONDS"`
	Payments        int    `yaml:"payments" envconfig:"PAYMENTS"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

// LoadFromEnv loads Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("IPR", c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Seed == "" {
		c.Seed = "demo-seed-not-for-production"
	}
	if c.Ledger == "" {
		c.Ledger = defaultLedger
	}
	if c.ReceiverAccount == "" {
		c.ReceiverAccount = defaultReceiverAccount
	}
	if c.Amount == "" {
		c.Amount = defaultAmount
	}
	if c.MaxSourceAmount == "" {
		c.MaxSourceAmount = defaultMaxSourceAmount
	}
	if c.MaxHoldSeconds == "" {
		c.MaxHoldSeconds = defaultHoldSeconds
	}
	if c.Payments <= 0 {
		c.Payments = defaultPayments
	}
}
