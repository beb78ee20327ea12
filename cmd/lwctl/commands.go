package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/lwctl/internal/protocol"
	"github.com/danmuck/lwctl/internal/protocol/session"
)

type commandEnv struct {
	session *session.Session
	out     io.Writer
	quiet   bool
}

func (e *commandEnv) progress() session.EventFunc {
	if e.quiet {
		return nil
	}
	return newProgressPrinter(e.out).print
}

type command interface {
	parse(args []string) error
	run(ctx context.Context, env *commandEnv) error
}

func lookup(name string) (command, error) {
	switch name {
	case "ping":
		return &pingCmd{}, nil
	case "tree":
		return &treeCmd{}, nil
	case "extract":
		return &extractCmd{}, nil
	case "extract-file", "extract-folder", "extract-toc":
		return &extractItemCmd{which: strings.TrimPrefix(name, "extract-")}, nil
	case "generate":
		return &generateCmd{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

func expectArgs(args []string, names ...string) error {
	if len(args) != len(names) {
		return fmt.Errorf("expected %s", strings.Join(names, " "))
	}
	for i, a := range args {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%s must not be empty", names[i])
		}
	}
	return nil
}

type pingCmd struct{}

func (c *pingCmd) parse(args []string) error {
	return expectArgs(args)
}

func (c *pingCmd) run(_ context.Context, env *commandEnv) error {
	_, err := fmt.Fprintf(env.out, "engine ready (session %s)\n", env.session.ID())
	return err
}

type treeCmd struct {
	archive string
	stats   bool
}

func (c *treeCmd) parse(args []string) error {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.BoolVar(&c.stats, "stats", false, "print totals after the listing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := expectArgs(fs.Args(), "<archive>"); err != nil {
		return err
	}
	c.archive = fs.Arg(0)
	return nil
}

func (c *treeCmd) run(ctx context.Context, env *commandEnv) error {
	if err := env.session.Open(ctx, c.archive); err != nil {
		return err
	}
	tree, err := env.session.GetTree(ctx)
	if err != nil {
		return err
	}
	if err := renderTree(env.out, tree); err != nil {
		return err
	}
	if c.stats {
		return renderStats(env.out, tree.Stats())
	}
	return nil
}

type extractCmd struct {
	archive, dest string
}

func (c *extractCmd) parse(args []string) error {
	if err := expectArgs(args, "<archive>", "<dest>"); err != nil {
		return err
	}
	c.archive, c.dest = args[0], args[1]
	return nil
}

func (c *extractCmd) run(ctx context.Context, env *commandEnv) error {
	if err := env.session.Open(ctx, c.archive); err != nil {
		return err
	}
	return env.session.ExtractAll(ctx, c.dest, env.progress())
}

type extractItemCmd struct {
	which               string
	archive, dest, item string
}

func (c *extractItemCmd) parse(args []string) error {
	if err := expectArgs(args, "<archive>", "<dest>", "<"+c.which+">"); err != nil {
		return err
	}
	c.archive, c.dest, c.item = args[0], args[1], args[2]
	return nil
}

func (c *extractItemCmd) run(ctx context.Context, env *commandEnv) error {
	if err := env.session.Open(ctx, c.archive); err != nil {
		return err
	}
	switch c.which {
	case "file":
		return env.session.ExtractFile(ctx, c.dest, c.item, env.progress())
	case "folder":
		return env.session.ExtractFolder(ctx, c.dest, c.item, env.progress())
	case "toc":
		return env.session.ExtractToc(ctx, c.dest, c.item, env.progress())
	default:
		return fmt.Errorf("unknown extract target %q", c.which)
	}
}

type generateCmd struct {
	param protocol.GenerateParam
}

func (c *generateCmd) parse(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	p := &c.param
	var ignore string
	var seed uint
	fs.BoolVar(&p.AllInOne, "allinone", false, "build every locale into one archive as separate tocs")
	fs.IntVar(&p.ThreadNum, "threads", 4, "engine worker threads")
	fs.BoolVar(&p.Encryption, "encrypt", false, "encrypt the archive")
	fs.IntVar(&p.CompressLevel, "level", 9, "compression level 0-9")
	fs.BoolVar(&p.KeepSign, "keepsign", false, "calculate the tool signature")
	fs.StringVar(&ignore, "ignore", "", "comma-separated ignore patterns")
	fs.UintVar(&seed, "seed", 0, "encryption seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := expectArgs(fs.Args(), "<root>", "<archive>"); err != nil {
		return err
	}
	if p.ThreadNum <= 0 {
		return errors.New("-threads must be positive")
	}
	if p.CompressLevel < 0 || p.CompressLevel > 9 {
		return errors.New("-level must be between 0 and 9")
	}
	p.Root, p.Archive = fs.Arg(0), fs.Arg(1)
	p.Seed = uint32(seed)
	p.IgnoreList = splitList(ignore)
	return nil
}

func (c *generateCmd) run(ctx context.Context, env *commandEnv) error {
	if err := env.session.Generate(ctx, c.param, env.progress()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(env.out, "wrote %s\n", c.param.Archive)
	return err
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
