package engine

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
)

// StopPolicyType selects how an open position's stop level is computed.
type StopPolicyType string

const (
	StopPolicyNone  StopPolicyType = "none"
	StopPolicyFixed StopPolicyType = "fixed"
	StopPolicyATR   StopPolicyType = "atr"
)

// AllStopPolicies lists every valid stop policy type.
var AllStopPolicies = []any{string(StopPolicyNone), string(StopPolicyFixed), string(StopPolicyATR)}

// BacktestConfig is the full configuration of one backtest run.
type BacktestConfig struct {
	Direction  types.Direction `yaml:"direction" json:"direction" jsonschema:"title=Direction,description=Trade direction the system is evaluated against" validate:"required,oneof=buy sell"`
	FastPeriod int             `yaml:"fast_period" json:"fast_period" jsonschema:"title=Fast Period,description=Period of the fast moving average,minimum=1" validate:"required,gt=0"`
	SlowPeriod int             `yaml:"slow_period" json:"slow_period" jsonschema:"title=Slow Period,description=Period of the slow moving average,minimum=2" validate:"required,gtfield=FastPeriod"`
	StopPolicy StopPolicyType  `yaml:"stop_policy" json:"stop_policy" jsonschema:"title=Stop Policy,description=Stop-loss rule applied to open positions" validate:"required,oneof=none fixed atr"`
	// StopOffset is the price distance of the fixed stop from the entry
	// price. Always positive; the engine signs it for the trade direction.
	StopOffset float64 `yaml:"stop_offset" json:"stop_offset" jsonschema:"title=Stop Offset,description=Fixed stop distance from the entry price,minimum=0" validate:"gte=0"`
	// ATRPeriod is the window the ATR feed is computed over.
	ATRPeriod int `yaml:"atr_period" json:"atr_period" jsonschema:"title=ATR Period,description=Window of the ATR series,minimum=1" validate:"gt=0"`
	// ATRMultiplier scales the previous session's ATR into the trailing stop
	// distance. Always positive; the engine signs it for the trade direction.
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier" jsonschema:"title=ATR Multiplier,description=ATR multiple used by the trailing stop,minimum=0" validate:"gte=0"`
	// SystemExitPrice selects which exit-side session price fills a system
	// exit. The original's fast implementation uses the open.
	SystemExitPrice types.PriceField `yaml:"system_exit_price" json:"system_exit_price" jsonschema:"title=System Exit Price,description=Session price field used for system exits" validate:"required,oneof=open close"`
	// Precision is the number of decimals stop levels are rounded to.
	// Yen-quoted pairs round to 3, everything else to 5.
	Precision int `yaml:"precision" json:"precision" jsonschema:"title=Precision,description=Decimal places for stop levels,minimum=0,maximum=8" validate:"gte=0,lte=8"`
}

// DefaultConfig returns a BacktestConfig with the original system's default
// parameter set.
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		Direction:       types.DirectionBuy,
		FastPeriod:      6,
		SlowPeriod:      24,
		StopPolicy:      StopPolicyNone,
		StopOffset:      0,
		ATRPeriod:       14,
		ATRMultiplier:   0,
		SystemExitPrice: types.PriceFieldOpen,
		Precision:       5,
	}
}

// UnmarshalYAML implements custom unmarshaling for BacktestConfig so omitted
// fields fall back to the defaults.
func (c *BacktestConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		Direction       *types.Direction  `yaml:"direction"`
		FastPeriod      *int              `yaml:"fast_period"`
		SlowPeriod      *int              `yaml:"slow_period"`
		StopPolicy      *StopPolicyType   `yaml:"stop_policy"`
		StopOffset      *float64          `yaml:"stop_offset"`
		ATRPeriod       *int              `yaml:"atr_period"`
		ATRMultiplier   *float64          `yaml:"atr_multiplier"`
		SystemExitPrice *types.PriceField `yaml:"system_exit_price"`
		Precision       *int              `yaml:"precision"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	*c = DefaultConfig()

	if config.Direction != nil {
		c.Direction = *config.Direction
	}

	if config.FastPeriod != nil {
		c.FastPeriod = *config.FastPeriod
	}

	if config.SlowPeriod != nil {
		c.SlowPeriod = *config.SlowPeriod
	}

	if config.StopPolicy != nil {
		c.StopPolicy = *config.StopPolicy
	}

	if config.StopOffset != nil {
		c.StopOffset = *config.StopOffset
	}

	if config.ATRPeriod != nil {
		c.ATRPeriod = *config.ATRPeriod
	}

	if config.ATRMultiplier != nil {
		c.ATRMultiplier = *config.ATRMultiplier
	}

	if config.SystemExitPrice != nil {
		c.SystemExitPrice = *config.SystemExitPrice
	}

	if config.Precision != nil {
		c.Precision = *config.Precision
	}

	return nil
}

// Validate checks the configuration eagerly, before any computation starts.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest configuration", err)
	}

	switch c.StopPolicy {
	case StopPolicyNone:
	case StopPolicyFixed:
		if c.StopOffset <= 0 {
			return errors.New(errors.ErrCodeInvalidConfiguration,
				"stop_policy fixed requires a positive stop_offset")
		}
	case StopPolicyATR:
		if c.ATRMultiplier <= 0 {
			return errors.New(errors.ErrCodeInvalidConfiguration,
				"stop_policy atr requires a positive atr_multiplier")
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"unknown stop policy %q", string(c.StopPolicy))
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestConfig.
func (c *BacktestConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.Contains(t.String(), "types.Direction") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllDirections,
				}
			}
			if strings.Contains(t.String(), "types.PriceField") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllPriceFields,
				}
			}
			if strings.Contains(t.String(), "engine.StopPolicyType") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllStopPolicies,
				}
			}
			return nil
		},
	}

	// Generate schema from BacktestConfig struct
	schema := reflector.Reflect(c)

	// Set schema metadata
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for a crossover backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestConfig.
func (c *BacktestConfig) GenerateSchemaJSON() (string, error) {
	schema := c.GenerateSchema()

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
