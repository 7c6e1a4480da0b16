package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"pucitshell/internal/config"
	"pucitshell/internal/logger"
	"pucitshell/internal/shell"
)

var (
	cfgPath   string
	command   string
	colorMode string
)

var rootCmd = &cobra.Command{
	Use:   "pucitshell",
	Short: "A small interactive command interpreter",
	Long: `Runs command lines as processes with pipes (|), redirection (< and >),
background jobs (&) and history recall (!n, !-1).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		log.SetFlags(0)
		log.SetPrefix("[pucitshell] ")

		os.Exit(run(cmd.Context(), afero.NewOsFs()))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run one line and exit")
	rootCmd.Flags().StringVar(&colorMode, "color", "", "colorize the output (always|auto|never)")
}

func loadConfig(fsys afero.Fs) (*config.Configuration, error) {
	cfg, err := config.Load(fsys, cfgPath)
	if err != nil {
		return nil, err
	}

	if colorMode != "" {
		cfg.Color = colorMode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func openEvents(fsys afero.Fs, cfg *config.Configuration) (*logger.Logger, io.Closer, error) {
	if cfg.EventLog == "" {
		return logger.Nop(), io.NopCloser(nil), nil
	}

	fd, err := cfg.OpenEventLog(fsys)
	if err != nil {
		return nil, nil, err
	}
	return logger.NewJsonLinesLogRecorder(fd), fd, nil
}

func run(ctx context.Context, fsys afero.Fs) int {
	cfg, err := loadConfig(fsys)
	if err != nil {
		log.Printf("couldn't load config: %v", err)
		return 1
	}

	events, closer, err := openEvents(fsys, cfg)
	if err != nil {
		log.Printf("couldn't open event log: %v", err)
		return 1
	}
	defer closer.Close()

	var reader shell.LineReader
	if command == "" {
		rl, err := shell.NewReadline()
		if err != nil {
			log.Printf("couldn't open terminal: %v", err)
			return 1
		}
		reader = rl
	} else {
		reader = noReader{}
	}

	useColor := cfg.ShouldColor(readline.IsTerminal(int(os.Stdout.Fd())))
	sh := shell.New(cfg, fsys, reader, events.NewSession(), useColor)

	var status int
	if command == "" {
		status = sh.Run(ctx)
	} else {
		status = sh.RunLine(ctx, command)
	}

	if err := sh.Close(); err != nil {
		log.Printf("couldn't save history: %v", err)
	}
	return status
}

// noReader stands in for the terminal when a line is given with -c.
type noReader struct{}

func (noReader) Readline() (string, error) { return "", io.EOF }
func (noReader) SetPrompt(string)          {}
func (noReader) Close() error              { return nil }

var _ shell.LineReader = noReader{}
