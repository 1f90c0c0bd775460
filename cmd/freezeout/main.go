package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build.
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the freezeout tournament server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("freezeout"),
		kong.Description("Multi-table no-limit Texas Hold'em freezeout tournament server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
