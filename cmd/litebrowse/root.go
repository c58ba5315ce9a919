package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/litebrowse/litebrowse/internal/config"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/logging"
	"github.com/litebrowse/litebrowse/internal/session"
)

// needsDB marks commands that run against an open database.
const needsDB = "litebrowse/needs-db"

// cli carries the state shared by every command of one invocation.
type cli struct {
	out    io.Writer
	errOut io.Writer

	configPath    string
	dbPath        string
	useRowID      bool
	allowMultiple bool
	logLevel      string
	output        string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
	sess     *session.Session
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "litebrowse",
		Short:         "Browse, edit and query SQLite databases",
		Long:          "litebrowse opens a SQLite (or libSQL) database to list tables, edit rows, run SQL, and move data in and out as SQL, CSV or JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "configuration file (YAML or JSON)")
	flags.StringVar(&c.dbPath, "db", "", "database file or libsql:// URL (overrides database.path)")
	flags.BoolVar(&c.useRowID, "use-rowid", false, "address rows of key-less tables by rowid")
	flags.BoolVar(&c.allowMultiple, "allow-multiple", false, "let an edit of a key-less row change every identical row")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVarP(&c.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(
		c.newDBCmd(),
		c.tablesCmd(), c.showCmd(), c.infoCmd(),
		c.insertCmd(), c.updateCmd(), c.deleteCmd(),
		c.createTableCmd(), c.dropCmd(), c.truncateCmd(),
		c.queryCmd(), c.templatesCmd(),
		c.schemaCmd(), c.ddlCmd(), c.dbInfoCmd(), c.checkCmd(), c.vacuumCmd(), c.dupesCmd(),
		c.exportCmd(), c.importCmd(),
		c.serveCmd(), c.versionCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides, builds the logger and,
// for commands marked needsDB, opens the database.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}
	if cmd.Flags().Changed("use-rowid") {
		cfg.Browse.RowIDFallback = c.useRowID
	}
	if cmd.Flags().Changed("allow-multiple") {
		cfg.Browse.AllowMultiple = c.allowMultiple
	}
	switch {
	case c.logLevel != "":
		cfg.Log.Level = c.logLevel
	case cmd.Annotations[needsDB] != "":
		// one-shot commands stay quiet unless asked
		cfg.Log.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.logger, c.closeLog, err = logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		SeqURL: cfg.Log.SeqURL,
		Output: c.errOut,
	})
	if err != nil {
		return err
	}

	if cmd.Annotations[needsDB] == "" {
		return nil
	}
	opts, err := session.OptionsFromConfig(cfg, nil, c.logger)
	if err != nil {
		return err
	}
	c.sess = session.New(opts)
	if cfg.Database.Path == "" {
		return lberrors.NewUserInputError(lberrors.CodeMissingArgument, "no database given; use --db or database.path")
	}
	return c.sess.Open(cmd.Context(), cfg.Database.Path)
}

func (c *cli) teardown() error {
	var err error
	if c.sess != nil {
		err = c.sess.Close()
	}
	if c.closeLog != nil {
		c.closeLog()
	}
	return err
}

// dbCommand marks cmd as needing the database and returns it.
func dbCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[needsDB] = "true"
	return cmd
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
