package extension

// Config holds the tokensale extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokensale" or "tokensale" keys).
type Config struct {
	// Cap is the hard supply cap in base units, as a base-10 integer
	// string. Required unless set programmatically via WithCap.
	Cap string `json:"cap" mapstructure:"cap" yaml:"cap"`

	// Decimals is the ledger's decimal precision (default: 18).
	Decimals uint8 `json:"decimals" mapstructure:"decimals" yaml:"decimals"`

	// Wallet is the treasury account credited by sale purchases. Required
	// when a payment asset is configured.
	Wallet string `json:"wallet" mapstructure:"wallet" yaml:"wallet"`

	// DustFinalization finalizes a round early once its remaining capacity
	// costs less than one minimum purchase.
	DustFinalization bool `json:"dust_finalization" mapstructure:"dust_finalization" yaml:"dust_finalization"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the host is expected to construct the matching store driver
	// (postgres/sqlite/mongo) over that database and pass it via WithStore.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Decimals: 18,
	}
}
