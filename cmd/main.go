package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jaxxstorm/flowver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	AppName     string  `short:"a" env:"FLOWVER_APP_NAME" help:"Application name prefix for tags and release branches (e.g. tag 'app-1.0.0', branch 'release/app-1.0.0')"`
	BuildNumber *uint64 `short:"b" env:"FLOWVER_BUILD_NUMBER" help:"Build number used instead of the commit count"`
	SkipFetch   bool    `short:"s" env:"FLOWVER_SKIP_FETCH" help:"Skip fetching tags from the remote"`
	Repo        string  `short:"r" env:"FLOWVER_REPO" help:"Repository path (default: current directory)"`
	Remote      string  `default:"origin" env:"FLOWVER_REMOTE" help:"Remote to fetch tags from"`
	Branch      string  `env:"FLOWVER_BRANCH" help:"Branch name to use instead of the checked out branch"`
	RequireTag  bool    `env:"FLOWVER_REQUIRE_TAG" help:"Fail on main unless HEAD is tagged"`
	Format      string  `short:"f" default:"json" enum:"json,semver,container" env:"FLOWVER_FORMAT" help:"Output format (json, semver, container)"`
	Verbose     bool    `short:"v" env:"FLOWVER_VERBOSE" help:"Log calculation steps to stderr"`
	ShowVersion bool    `help:"Show version information" name:"version"`
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("flowver"),
		kong.Description("Calculate a semantic version from git-flow branches, tags and commits"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	logger := newLogger(cli.Verbose)
	defer func() { _ = logger.Sync() }()

	err := cli.Run(context.Background(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core).Named("flowver")
}

func (c *CLI) Run(ctx context.Context, logger *zap.Logger) error {
	// Handle version flag
	if c.ShowVersion {
		return c.showVersion()
	}

	return c.calculateVersion(ctx, logger)
}

func (c *CLI) showVersion() error {
	fmt.Printf("flowver version %s\n", Version)
	return nil
}

func (c *CLI) calculateVersion(ctx context.Context, logger *zap.Logger) error {
	repoPath := c.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	repo, err := flowver.OpenRepository(repoPath)
	if err != nil {
		return fmt.Errorf("opening repository %q: %w", repoPath, err)
	}

	src := flowver.NewGitSource(repo)
	src.Logger = logger
	if c.Remote != "" {
		src.Remote = c.Remote
	}

	result, err := flowver.Calculate(ctx, src, c.options(logger))
	if err != nil {
		return err
	}

	return writeResult(os.Stdout, result, c.Format)
}

func (c *CLI) options(logger *zap.Logger) flowver.Options {
	return flowver.Options{
		AppName:     c.AppName,
		BuildNumber: c.BuildNumber,
		SkipFetch:   c.SkipFetch,
		Branch:      c.Branch,
		RequireTag:  c.RequireTag,
		Logger:      logger,
	}
}

func writeResult(w io.Writer, result *flowver.Result, format string) error {
	switch strings.ToLower(format) {
	case "semver":
		_, err := fmt.Fprintln(w, result.AppVersion)
		return err
	case "container":
		_, err := fmt.Fprintln(w, result.ContainerTag)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}
