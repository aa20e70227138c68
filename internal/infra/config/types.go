package config

// Environment identifies the runtime environment where riftpilot operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverPGX    = "pgx"
)
