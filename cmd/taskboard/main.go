package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskboard/internal/apiclient"
	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/models"
	"taskboard/internal/querycache"
)

var Version = "dev"

// session is everything a subcommand needs, built once per invocation.
type session struct {
	cfg    *config.ClientConfig
	log    *zap.Logger
	client *apiclient.Client
	cache  *querycache.Cache
	board  *board.Board
}

func (s *session) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.log != nil {
		_ = s.log.Sync()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := &session{}
	err := newRootCmd(sess).ExecuteContext(ctx)
	sess.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(sess *session) *cobra.Command {
	v := viper.New()
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Terminal client for the task API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return sess.open(v, cfgPath, cmd.Name() == "board" || cmd.Name() == "taskboard")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd.Context(), sess)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "config file (default ~/.taskboard.yaml)")
	flags.String("api-url", "", "task API base URL")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.String("sort", "", "sort field: status, created_at or due_date")
	flags.String("log-level", "", "log level")
	_ = v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("sort", flags.Lookup("sort"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(boardCmd(sess))
	rootCmd.AddCommand(listCmd(sess))
	rootCmd.AddCommand(addCmd(sess))
	rootCmd.AddCommand(completeCmd(sess))
	rootCmd.AddCommand(deleteCmd(sess))
	rootCmd.AddCommand(summaryCmd(sess))

	return rootCmd
}

// open loads config and wires client, cache and board. interactive turns off
// console logging so it does not draw over the terminal UI.
func (s *session) open(v *viper.Viper, cfgPath string, interactive bool) error {
	cfg, err := config.LoadClient(v, cfgPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	if interactive && (cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout") {
		s.log = zap.NewNop()
	} else if s.log, err = logging.New(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	s.client, err = apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithLogger(s.log),
		apiclient.WithBreaker(cfg.Breaker),
	)
	if err != nil {
		return err
	}

	s.cache = querycache.New(s.client, cfg.Cache,
		querycache.WithLogger(s.log),
		querycache.WithRefreshErrorHandler(func(_ models.TaskFilter, err error) {
			s.log.Warn("[board][refresh][err]", zap.Error(err))
		}),
		querycache.WithRefreshHandler(func(filter models.TaskFilter, tasks []models.Task) {
			s.board.Revalidated(filter, tasks)
		}),
	)

	sortField, err := cfg.SortField()
	if err != nil {
		return err
	}
	s.board = board.New(s.client, s.cache, board.WithLogger(s.log), board.WithSort(sortField))
	return nil
}
