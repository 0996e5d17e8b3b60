// Command shapegen generates typed Go clients from service models and
// calls operations from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/broady/shapeclient/cmd/shapegen/internal/check"
	"github.com/broady/shapeclient/cmd/shapegen/internal/gen"
	"github.com/broady/shapeclient/cmd/shapegen/internal/invoke"
)

type CLI struct {
	Verbose bool `help:"Log debug output." short:"v"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate a typed Go client package from a model."`
	Check   check.Cmd  `cmd:"" help:"Validate a model without generating files."`
	Invoke  invoke.Cmd `cmd:"" help:"Call an operation, configured from SHAPECLIENT_* environment variables."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("shapegen"),
		kong.Description("Client generator and caller for HTTP services described by shape models."),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(logger)
	err := kctx.Run()
	stop()
	kctx.FatalIfErrorf(err)
}
