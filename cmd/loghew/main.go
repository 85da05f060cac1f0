package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/loghew/internal/config"
	"github.com/TimelordUK/loghew/internal/engine"
	"github.com/TimelordUK/loghew/internal/ui"
)

var (
	followFlag bool
	timeFlag   string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "loghew [file]",
	Short: "An interactive viewer for large, growing log files",
	Long: `loghew opens plain-text log files of any size, detects timestamps and
log levels, and keeps up with files that are still being written.

With no file argument it reads from a pipe:

  journalctl -u myservice | loghew`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "follow appended lines (like tail -f)")
	rootCmd.Flags().StringVarP(&timeFlag, "time", "t", "", "jump to time on open (e.g. 14:30, 14:30:00)")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "write a debug log to the temp directory")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := engine.Options{
		Follow: followFlag || cfg.Display.FollowOnOpen,
		Debug:  debugFlag,
	}

	var eng *engine.Engine
	if len(args) == 1 {
		eng, err = engine.Open(args[0], opts)
	} else {
		info, statErr := os.Stdin.Stat()
		if statErr != nil || info.Mode()&os.ModeCharDevice != 0 {
			return cmd.Usage()
		}
		eng, err = engine.OpenStream(os.Stdin, opts)
	}
	if err != nil {
		return err
	}

	model := ui.NewModel(eng, cfg)
	defer model.Close()
	if timeFlag != "" {
		model.SetInitialTime(timeFlag)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
