package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/nbmark/internal"
	pkgconfig "github.com/starford/nbmark/pkg/config"
)

const defaultConfigFile = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), defaultConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func syncIndex(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.RunSync(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d, unchanged %d, removed %d, failed %d\n", res.Indexed, res.Unchanged, res.Removed, res.Failed)
	return nil
}

func export(_ context.Context, cmd *cli.Command) error {
	in := cmd.Args().First()
	if in == "" {
		return fmt.Errorf("notebook path is required")
	}
	out, err := exportNotebook(in, cmd.String("output"), cmd.String("type"), cmd.Bool("strip-ansi"))
	if err != nil {
		return err
	}
	fmt.Printf("The notebook '%s' was exported to markdown '%s'\n", in, out)
	return nil
}

func show(_ context.Context, cmd *cli.Command) error {
	in := cmd.Args().First()
	if in == "" {
		return fmt.Errorf("notebook path is required")
	}
	return showNotebook(os.Stdout, in, cmd.String("style"), int(cmd.Int("width")), cmd.Bool("strip-ansi"))
}

func stripANSIFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "strip-ansi",
		Usage: "Remove terminal escape sequences from outputs",
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "nbmark",
		Usage: "Render Jupyter notebooks to Markdown and serve a notebook workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Export a notebook file to Markdown",
				ArgsUsage: "<notebook.ipynb>",
				Action:    export,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output",
						Usage: "Path of the output file (default: <name>.md in the current directory)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Output format",
						Value: "markdown",
					},
					stripANSIFlag(),
				},
			},
			{
				Name:      "show",
				Usage:     "Render a notebook to the terminal",
				ArgsUsage: "<notebook.ipynb>",
				Action:    show,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "style",
						Usage: "glamour style (dark, light, notty, ...)",
						Value: "dark",
					},
					&cli.IntFlag{
						Name:  "width",
						Usage: "Word wrap width",
						Value: 80,
					},
					stripANSIFlag(),
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the notebook workspace over HTTP with live events",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the notebook workspace as MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "sync",
				Usage:  "Synchronize the workspace index once and exit",
				Action: syncIndex,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
