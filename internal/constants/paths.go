package constants

// DefaultEnvPath is the default path to the .env file
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the default path to the config.toml file
const DefaultConfigPath = "./config.toml"

// DefaultJobsPath is the job definition file used when the config names none.
const DefaultJobsPath = "./jobs.yaml"
