package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/ext2sh/pkg/config"
	"github.com/weberc2/ext2sh/pkg/ext2"
	"github.com/weberc2/ext2sh/pkg/image"
	"github.com/weberc2/ext2sh/pkg/logger"
	"github.com/weberc2/ext2sh/pkg/shell"
)

// flags override the config file and the environment when set.
type flags struct {
	configFile string
	image      string
	readOnly   bool
	logLevel   string
}

func main() {
	var f flags
	app := cli.App{
		Name:        config.AppName,
		Usage:       "explore and edit ext2 images",
		Description: "opens an ext2 image from a local path or `s3://bucket/key`",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to a YAML config file",
				Destination: &f.configFile,
			},
			&cli.StringFlag{
				Name:        "image",
				Aliases:     []string{"i"},
				Usage:       "image path or `s3://bucket/key` URL",
				Destination: &f.image,
			},
			&cli.BoolFlag{
				Name:        "read-only",
				Usage:       "reject every write to the image",
				Destination: &f.readOnly,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "DEBUG, INFO, WARN or ERROR",
				Destination: &f.logLevel,
			},
		},
		Action: withShell(&f, runShell),
		Commands: []*cli.Command{{
			Name:   "shell",
			Usage:  "start an interactive session (the default)",
			Action: withShell(&f, runShell),
		}, {
			Name:            "ls",
			Usage:           "list a directory",
			ArgsUsage:       "[-l] [path]",
			SkipFlagParsing: true,
			Action:          withShell(&f, runCommand),
		}, {
			Name:            "cat",
			Usage:           "print a file",
			ArgsUsage:       "<path>",
			SkipFlagParsing: true,
			Action:          withShell(&f, runCommand),
		}, {
			Name:            "mkdir",
			Usage:           "add a directory entry pointing at an existing inode",
			ArgsUsage:       "[--inode N] <path>",
			SkipFlagParsing: true,
			Action:          withShell(&f, runCommand),
		}, {
			Name:            "link",
			Usage:           "add a directory entry for an existing file",
			ArgsUsage:       "<target> <path>",
			SkipFlagParsing: true,
			Action:          withShell(&f, runCommand),
		}, {
			Name:            "resolve",
			Usage:           "print the inode number a path resolves to",
			ArgsUsage:       "<path>",
			SkipFlagParsing: true,
			Action:          withShell(&f, runCommand),
		}, {
			Name:   "info",
			Usage:  "print the superblock",
			Action: withShell(&f, runCommand),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runShell(sh *shell.Shell, ctx *cli.Context) error {
	return sh.Run(ctx.Context, os.Stdin)
}

// runCommand runs a single shell command named after the CLI command.
func runCommand(sh *shell.Shell, ctx *cli.Context) error {
	return sh.ExecArgs(
		ctx.Context,
		append([]string{ctx.Command.Name}, ctx.Args().Slice()...),
	)
}

func withShell(
	f *flags,
	action func(*shell.Shell, *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := config.Load(f.configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if f.image != "" {
			c.Image = f.image
		}
		if f.readOnly {
			c.ReadOnly = true
		}
		if f.logLevel != "" {
			c.LogLevel = f.logLevel
		}
		if err := c.Validate(); err != nil {
			return err
		}

		l, err := logger.New(os.Stderr, c.LogLevel)
		if err != nil {
			return err
		}
		ctx.Context = logger.Set(ctx.Context, l)

		img, err := image.Open(ctx.Context, c.Image, image.Options{
			ReadOnly:  c.ReadOnly,
			AWSRegion: c.AWSRegion,
		})
		if err != nil {
			return err
		}

		fs, err := ext2.Load(img.Volume, c.ReadOnly)
		if err != nil {
			if closeErr := img.Close(ctx.Context); closeErr != nil {
				l.Error("closing image", "err", closeErr)
			}
			return fmt.Errorf("loading filesystem from `%s`: %w", c.Image, err)
		}
		fs.Logger = l
		l.Debug(
			"loaded filesystem",
			"image", c.Image,
			"uuid", fs.Superblock.UUID,
			"blockSize", fs.BlockSize(),
			"groups", len(fs.Groups),
		)

		actionErr := action(shell.New(fs, c.Prompt, os.Stdout), ctx)
		if err := img.Close(ctx.Context); err != nil {
			if actionErr != nil {
				l.Error("closing image", "err", err)
				return actionErr
			}
			return err
		}
		return actionErr
	}
}
