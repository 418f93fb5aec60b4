// Package config loads the bot fleet's TOML configuration document via
// viper, decoding into typed structs with mapstructure the same way
// terorie-pythian/server/handler.go's decodeParams decodes untyped
// JSON-RPC params — including the TextUnmarshallerHookFunc hook so
// solana.PublicKey and similar text-marshaled types decode straight
// from their string form.
package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/Kriptikz/evorebot/internal/botrunner"
)

// BotConfig is one bot's on-disk configuration entry.
type BotConfig struct {
	Name            string                   `mapstructure:"name"`
	AuthID          uint64                   `mapstructure:"auth_id"`
	Strategy        string                   `mapstructure:"strategy"`
	SlotsLeft       uint64                   `mapstructure:"slots_left"`
	Bankroll        uint64                   `mapstructure:"bankroll"`
	Attempts        int                      `mapstructure:"attempts"`
	PriorityFee     uint64                   `mapstructure:"priority_fee"`
	JitoTip         uint64                   `mapstructure:"jito_tip"`
	PausedOnStartup bool                     `mapstructure:"paused_on_startup"`
	StrategyParams  map[string]interface{}   `mapstructure:"strategy_params"`
	SignerPath      string                   `mapstructure:"signer_path"`
	ManagerPath     string                   `mapstructure:"manager_path"`
}

// Document is the top-level configuration document.
type Document struct {
	RPCURL            string      `mapstructure:"rpc_url"`
	WSURL             string      `mapstructure:"ws_url"`
	ShredWSURL        string      `mapstructure:"shred_ws_url"`
	ProgramID         string      `mapstructure:"program_id"`
	DefaultSignerPath string      `mapstructure:"default_signer_path"`
	DefaultManagerPath string     `mapstructure:"default_manager_path"`
	SubmissionEndpoints []string  `mapstructure:"submission_endpoints"`
	Bots              []BotConfig `mapstructure:"bots"`
}

// Load reads and decodes a TOML configuration file at path.
func Load(path string) (Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Document{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.TextUnmarshallerHookFunc(),
		Result:     &doc,
	})
	if err != nil {
		return Document{}, err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return Document{}, fmt.Errorf("config: failed to decode: %w", err)
	}
	return doc, nil
}

// ToRunnerConfig converts an on-disk BotConfig into the runtime
// botrunner.Config, resolving the tagged-union strategy params.
func (b BotConfig) ToRunnerConfig() (botrunner.Config, error) {
	cfg := botrunner.Config{
		Name:            b.Name,
		AuthID:          b.AuthID,
		SlotsLeft:       b.SlotsLeft,
		Bankroll:        b.Bankroll,
		Attempts:        b.Attempts,
		PriorityFee:     b.PriorityFee,
		JitoTip:         b.JitoTip,
		PausedOnStartup: b.PausedOnStartup,
	}

	switch b.Strategy {
	case "ev", "":
		cfg.Strategy = botrunner.StrategyEV
	case "percentage":
		cfg.Strategy = botrunner.StrategyPercentage
		if pct, ok := b.StrategyParams["percent"].(float64); ok {
			cfg.Params.Percent = pct
		}
	case "manual":
		cfg.Strategy = botrunner.StrategyManual
		if sq, ok := b.StrategyParams["square"].(int); ok {
			cfg.Params.ManualSquare = sq
		} else if sqF, ok := b.StrategyParams["square"].(float64); ok {
			cfg.Params.ManualSquare = int(sqF)
		}
		if amt, ok := b.StrategyParams["amount"].(float64); ok {
			cfg.Params.ManualAmount = uint64(amt)
		}
	default:
		return botrunner.Config{}, fmt.Errorf("config: unknown strategy %q for bot %q", b.Strategy, b.Name)
	}

	return cfg, nil
}

// ProgramPubkey parses the document's program id.
func (d Document) ProgramPubkey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(d.ProgramID)
}
