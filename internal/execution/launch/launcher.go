package launch

import (
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"go.uber.org/zap"
)

// Launcher creates shells whose environment is assembled from dotenv
// files, the inherited log options and diagnostic variables.
type Launcher struct {
	cfg      Config
	shellCfg shell.Config

	// lookupEnv reads the inherited environment
	lookupEnv func(string) (string, bool)

	// now returns the command creation time
	now func() time.Time

	log *zap.Logger
}

// New creates a launcher.
func New(cfg Config, shellCfg shell.Config, log *zap.Logger) *Launcher {
	return &Launcher{
		cfg:       cfg,
		shellCfg:  shellCfg,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		log:       log.Named("launch"),
	}
}

// Command creates a shell for args with the assembled environment
// overlay and working directory. extra is applied last.
func (l *Launcher) Command(args []string, extra map[string]string) (*shell.Shell, error) {
	created := l.now()

	env, err := l.Environment(created)
	if err != nil {
		return nil, err
	}

	maps.Copy(env, extra)

	sh := shell.NewWithConfig(l.shellCfg, l.log, args...).EnvMap(env)

	if l.cfg.Dir != "" {
		sh.Dir(l.cfg.Dir)
	}

	return sh, nil
}

// Environment returns the variables set on top of the inherited
// environment for a command created at the given time.
func (l *Launcher) Environment(created time.Time) (map[string]string, error) {
	env := map[string]string{}

	for _, path := range l.cfg.EnvFiles {
		vars, err := loadEnvFile(path)
		if err != nil {
			return nil, err
		}

		l.log.Debug("loaded env file", zap.String("file", path), zap.Int("vars", len(vars)))

		maps.Copy(env, vars)
	}

	if l.cfg.LogLevelVar != "" {
		opts := l.logOptions(env)

		l.log.Debug("log options", zap.String("var", l.cfg.LogLevelVar), zap.String("value", opts))

		env[l.cfg.LogLevelVar] = opts
	}

	if l.shellCfg.Debug && l.cfg.DebugTimeVar != "" {
		env[l.cfg.DebugTimeVar] = created.UTC().Format(time.RFC3339Nano)
	}

	return env, nil
}

// logOptions returns the value of the log options variable with the log
// level appended, unless the value already sets one.
func (l *Launcher) logOptions(env map[string]string) string {
	opts, ok := env[l.cfg.LogLevelVar]
	if !ok {
		opts, _ = l.lookupEnv(l.cfg.LogLevelVar)
	}

	if l.cfg.LogLevelPrefix == "" || strings.Contains(opts, l.cfg.LogLevelPrefix) {
		return opts
	}

	return strings.TrimSpace(opts + " " + l.cfg.LogLevelPrefix + l.cfg.LogLevel)
}

func loadEnvFile(path string) (map[string]string, error) {
	// keys may contain dots, which must not be treated as nesting
	k := koanf.New("\x00")

	if err := k.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	return k.StringMap(""), nil
}
