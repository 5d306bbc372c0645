package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/playperu/tuttifrutti/internal/database"
	"github.com/playperu/tuttifrutti/internal/migrations"
	"github.com/playperu/tuttifrutti/internal/stopgame"
	"github.com/playperu/tuttifrutti/internal/validation"
)

type options struct {
	db  string
	dsn string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	v := viper.New()
	v.SetEnvPrefix("CACHECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "cachectl",
		Short: "Inspect and edit the word validation cache.",
		Args:  cobra.NoArgs,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&opts.db, "db", "data/tuttifrutti.db", "path to the SQLite cache (env: CACHECTL_DB)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN, overrides --db (env: CACHECTL_DSN)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newLookupCmd(opts),
		newStatsCmd(opts),
		newPurgeCmd(opts),
		newPutCmd(opts),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// open connects to the configured cache. SQLite files are migrated first so a
// fresh path is usable.
func (o *options) open(ctx context.Context) (validation.Inspector, func(), error) {
	if o.dsn != "" {
		pg, err := validation.NewPostgresCache(ctx, o.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return pg, pg.Close, nil
	}

	db, err := database.Open(ctx, o.db)
	if err != nil {
		return nil, nil, err
	}
	if _, err := migrations.Run(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return validation.NewSQLiteCache(db), func() { db.Close() }, nil
}

func newLookupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup LETTER CATEGORY WORD",
		Short: "Show the cached verdict for a word.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			letter := stopgame.NormalizeLetter(args[0])
			word := stopgame.Normalize(args[2])
			e, err := cache.Get(cmd.Context(), letter, args[1], word)
			if errors.Is(err, validation.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s/%s: not cached\n", letter, args[1], word)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s/%s: valid=%t score=%g reason=%q cached=%s\n",
				e.Letter, e.Category, e.Word, e.Verdict.Valid, e.Verdict.Score, e.Verdict.Reason,
				e.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count cached verdicts per letter.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LETTER\tVALID\tINVALID")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\n", s.Letter, s.Valid, s.Invalid)
			}
			return w.Flush()
		},
	}
}

func newPurgeCmd(opts *options) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "purge LETTER",
		Short: "Delete cached verdicts for a letter.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := cache.Purge(cmd.Context(), stopgame.NormalizeLetter(args[0]), category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d verdicts\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only purge this category")
	return cmd
}

func newPutCmd(opts *options) *cobra.Command {
	var verdict stopgame.Verdict

	cmd := &cobra.Command{
		Use:   "put LETTER CATEGORY WORD",
		Short: "Seed a verdict, keeping any existing one.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch verdict.Score {
			case 0, 0.5, 1:
			default:
				return fmt.Errorf("score must be 0, 0.5 or 1, got %g", verdict.Score)
			}

			cache, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			letter := stopgame.NormalizeLetter(args[0])
			key := stopgame.WordKey{Category: args[1], Word: stopgame.Normalize(args[2])}
			if key.Word == "" {
				return errors.New("word is empty")
			}
			if err := cache.Store(cmd.Context(), letter, stopgame.Verdicts{key: verdict}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s/%s/%s\n", letter, key.Category, key.Word)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&verdict.Valid, "valid", false, "mark the word as valid")
	fs.Float64Var(&verdict.Score, "score", 1, "points multiplier: 0, 0.5 or 1")
	fs.StringVar(&verdict.Reason, "reason", "seeded by operator", "reason shown to players")
	return cmd
}
