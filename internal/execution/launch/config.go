package launch

// Config describes how the launcher assembles the environment of the
// commands it creates.
type Config struct {
	// Dir is the working directory of launched commands
	Dir string `conf:"dir"`

	// EnvFiles are dotenv files loaded into the child environment, in
	// order. Later files override earlier ones.
	EnvFiles []string `conf:"env_files"`

	// LogLevelVar is the variable carrying the child's options, e.g.
	// MAVEN_OPTS. The log level overlay is disabled if empty.
	LogLevelVar string `conf:"log_level_var"`

	// LogLevelPrefix is the option that sets the child's log level
	LogLevelPrefix string `conf:"log_level_prefix"`

	// LogLevel is appended to LogLevelPrefix unless the inherited value
	// already sets a level.
	LogLevel string `conf:"log_level"`

	// DebugTimeVar receives the command creation time when debugging
	DebugTimeVar string `conf:"debug_time_var"`
}

var DefaultConfig = Config{
	LogLevelPrefix: "-Dorg.slf4j.simpleLogger.defaultLogLevel=",
	LogLevel:       "off",
	DebugTimeVar:   "MAVEN_EXEC_DEBUG_INIT_TIME",
}
