package app

import (
	"github.com/lambda-feedback/procshell/config"
	internalapp "github.com/lambda-feedback/procshell/internal/app"
	"github.com/lambda-feedback/procshell/util/conf"
	"github.com/lambda-feedback/procshell/util/logging"
	"github.com/urfave/cli/v2"
)

// EnvPrefix is the prefix of environment variables read as config
const EnvPrefix = "PROCSHELL_"

// New parses the config from the config file, the environment and the
// flags of ctx, and creates the application running a single command.
func New(ctx *cli.Context, cliMap map[string]string) (*internalapp.App, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Cli:       ctx,
		CliMap:    cliMap,
		Defaults:  config.DefaultConfig,
		EnvPrefix: EnvPrefix,
		FileName:  ctx.Path("config"),
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	// inject the config into the cli context
	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	return internalapp.New(log, internalapp.Module(cfg)), nil
}
