package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/ext2sh/pkg/ext2"
	"github.com/weberc2/ext2sh/pkg/logger"
	"gopkg.in/yaml.v2"
)

// Shell is an interactive session over one filesystem. Paths are resolved
// against Cwd unless they start with a slash.
type Shell struct {
	FS     *ext2.FileSystem
	Cwd    ext2.Ino
	Prompt string
	Out    io.Writer

	done bool
}

func New(fs *ext2.FileSystem, prompt string, out io.Writer) *Shell {
	return &Shell{FS: fs, Cwd: ext2.RootIno, Prompt: prompt, Out: out}
}

// Run reads commands from `in` until `quit`, `exit` or end of input.
// Command errors are printed and the session continues.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	log := logger.Get(ctx)
	scanner := bufio.NewScanner(in)
	for !sh.done {
		fmt.Fprint(sh.Out, sh.Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading command: %w", err)
			}
			fmt.Fprintln(sh.Out)
			break
		}

		line := scanner.Text()
		if err := sh.Exec(ctx, line); err != nil {
			log.Debug("command failed", "line", line, "err", err)
			fmt.Fprintf(sh.Out, "%v\n", err)
		}
	}
	fmt.Fprintln(sh.Out, "bye!")
	return nil
}

func (sh *Shell) Exec(ctx context.Context, line string) error {
	return sh.ExecArgs(ctx, strings.Fields(line))
}

// ExecArgs runs one command; `args[0]` is the command name.
func (sh *Shell) ExecArgs(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return nil
	}
	return sh.app().RunContext(ctx, append([]string{"ext2sh"}, args...))
}

func (sh *Shell) app() *cli.App {
	return &cli.App{
		Name:           "ext2sh",
		Usage:          "explore an ext2 image",
		Writer:         sh.Out,
		ErrWriter:      sh.Out,
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			return fmt.Errorf("unknown command: %s", c.Args().First())
		},
		Commands: []*cli.Command{{
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[path]",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:    "long",
				Aliases: []string{"l"},
				Usage:   "print inode numbers and file types",
			}},
			Action: sh.ls,
		}, {
			Name:      "cd",
			Usage:     "change directory; the root without an argument",
			ArgsUsage: "[path]",
			Action:    sh.cd,
		}, {
			Name:   "pwd",
			Usage:  "print the current directory's inode number",
			Action: sh.pwd,
		}, {
			Name:      "cat",
			Usage:     "print a file",
			ArgsUsage: "<path>",
			Action:    sh.cat,
		}, {
			Name:      "mkdir",
			Usage:     "add a directory entry pointing at an existing inode",
			ArgsUsage: "<path>",
			Flags: []cli.Flag{&cli.UintFlag{
				Name:  "inode",
				Usage: "target inode; defaults to the parent directory",
			}},
			Action: sh.mkdir,
		}, {
			Name:      "link",
			Aliases:   []string{"ln"},
			Usage:     "add a directory entry for an existing file",
			ArgsUsage: "<target> <path>",
			Action:    sh.link,
		}, {
			Name:      "resolve",
			Usage:     "print the inode number a path resolves to",
			ArgsUsage: "<path>",
			Action:    sh.resolve,
		}, {
			Name:   "info",
			Usage:  "print the superblock",
			Action: sh.info,
		}, {
			Name:    "quit",
			Aliases: []string{"exit"},
			Usage:   "end the session",
			Action: func(*cli.Context) error {
				sh.done = true
				return nil
			},
		}},
	}
}

// lookup resolves `p`, reporting a missing path as an error.
func (sh *Shell) lookup(p string) (ext2.Ino, error) {
	ino, found, err := sh.FS.Walk(sh.Cwd, p)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("unable to follow path: %s", p)
	}
	return ino, nil
}

func (sh *Shell) ls(c *cli.Context) error {
	dir := sh.Cwd
	if c.Args().Present() {
		ino, err := sh.lookup(c.Args().First())
		if err != nil {
			return fmt.Errorf("ls: %w", err)
		}
		inode, err := sh.FS.ReadInode(ino)
		if err != nil {
			return fmt.Errorf("ls: %w", err)
		}
		if !inode.IsDir() {
			fmt.Fprintln(sh.Out, path.Base(c.Args().First()))
			return nil
		}
		dir = ino
	}

	infos, err := sh.FS.List(dir)
	if err != nil {
		return fmt.Errorf("ls: %w", err)
	}

	if c.Bool("long") {
		for _, info := range infos {
			fmt.Fprintf(
				sh.Out,
				"%d\t%s\t%s\n",
				info.Ino,
				info.FileType,
				info.Name,
			)
		}
		return nil
	}

	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name
	}
	fmt.Fprintln(sh.Out, strings.Join(names, "\t"))
	return nil
}

func (sh *Shell) cd(c *cli.Context) error {
	if !c.Args().Present() {
		sh.Cwd = ext2.RootIno
		return nil
	}

	p := c.Args().First()
	ino, found, err := sh.FS.Walk(sh.Cwd, p)
	if err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	if !found {
		return fmt.Errorf("cd: unable to find directory: %s", p)
	}
	inode, err := sh.FS.ReadInode(ino)
	if err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	if !inode.IsDir() {
		return fmt.Errorf("cd: not a directory: %s", p)
	}
	sh.Cwd = ino
	return nil
}

func (sh *Shell) pwd(c *cli.Context) error {
	fmt.Fprintln(sh.Out, sh.Cwd)
	return nil
}

func (sh *Shell) cat(c *cli.Context) error {
	if !c.Args().Present() {
		return fmt.Errorf("cat: must pass a file to show")
	}
	ino, err := sh.lookup(c.Args().First())
	if err != nil {
		return fmt.Errorf("cat: %w", err)
	}
	data, err := sh.FS.ReadFileBytes(ino)
	if err != nil {
		return fmt.Errorf("cat: %s: %w", c.Args().First(), err)
	}
	if _, err := sh.Out.Write(data); err != nil {
		return fmt.Errorf("cat: writing output: %w", err)
	}
	return nil
}

// parent resolves the directory part of `p` and returns it with the final
// path element.
func (sh *Shell) parent(p string) (ext2.Ino, string, error) {
	dir, name := path.Split(strings.TrimRight(p, "/"))
	if name == "" {
		return 0, "", fmt.Errorf("missing name in `%s`", p)
	}
	parent := sh.Cwd
	if dir != "" {
		ino, err := sh.lookup(dir)
		if err != nil {
			return 0, "", err
		}
		parent = ino
	}
	return parent, name, nil
}

func (sh *Shell) mkdir(c *cli.Context) error {
	if !c.Args().Present() {
		return fmt.Errorf("mkdir: must pass a directory name")
	}
	parent, name, err := sh.parent(c.Args().First())
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	target := parent
	if c.IsSet("inode") {
		target = ext2.Ino(c.Uint("inode"))
	}
	if err := sh.FS.MakeDirectory(parent, name, target); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return nil
}

func (sh *Shell) link(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: link <target> <path>")
	}
	target, err := sh.lookup(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	parent, name, err := sh.parent(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	if err := sh.FS.Link(parent, name, target); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	return nil
}

func (sh *Shell) resolve(c *cli.Context) error {
	ino, err := sh.lookup(c.Args().First())
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	fmt.Fprintln(sh.Out, ino)
	return nil
}

type summary struct {
	UUID       string          `yaml:"uuid"`
	BlockSize  uint64          `yaml:"blockSize"`
	Groups     int             `yaml:"groups"`
	Superblock ext2.Superblock `yaml:"superblock"`
}

func (sh *Shell) info(c *cli.Context) error {
	data, err := yaml.Marshal(&summary{
		UUID:       sh.FS.Superblock.UUID.String(),
		BlockSize:  sh.FS.BlockSize(),
		Groups:     len(sh.FS.Groups),
		Superblock: sh.FS.Superblock,
	})
	if err != nil {
		return fmt.Errorf("info: marshaling superblock: %w", err)
	}
	if _, err := sh.Out.Write(data); err != nil {
		return fmt.Errorf("info: writing output: %w", err)
	}
	return nil
}
