package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/pairent/config"
	"github.com/acksell/pairent/forum/cascade"
	"github.com/acksell/pairent/forum/query"
	"github.com/acksell/pairent/forum/repo"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd(a *app) *cobra.Command {
	var (
		configPath string
		local      bool
		tableName  string
		metrics    bool
	)
	root := &cobra.Command{
		Use:           "forumctl",
		Short:         "Inspect and repair the pairent forum table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("local") {
				cfg.Local.Enabled = local
			}
			if tableName != "" {
				cfg.Table = tableName
			}
			if metrics {
				cfg.Metrics.Enabled = true
			}
			a.cfg = cfg
			if cmd.Annotations["aws-only"] == "true" {
				return nil
			}
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.dumpMetrics()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to pairent.yaml (default: nearest one upwards)")
	pf.BoolVar(&local, "local", false, "use the embedded badger store")
	pf.StringVar(&tableName, "table", "", "table name override")
	pf.BoolVar(&metrics, "metrics", false, "print store metrics to stderr when done")

	root.AddCommand(
		listCmd(a),
		searchCmd(a),
		getCmd(a),
		deleteCmd(a),
		reconcileCmd(a),
		pruneSavesCmd(a),
		itemsCmd(a),
		whoamiCmd(a),
	)
	return root
}

// run wraps a command body so the store is closed afterwards.
func run(a *app, fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd.Context(), args)
		return errors.Join(err, a.close())
	}
}

type pageFlags struct {
	dir    string
	limit  int
	cursor string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.dir, "dir", "backward", "backward (newest/most liked first) or forward")
	cmd.Flags().IntVar(&p.limit, "limit", 0, "page size (0 uses the configured default)")
	cmd.Flags().StringVar(&p.cursor, "cursor", "", "cursor from a previous page")
}

// emitResult writes the questions followed by a trailer line with the
// cursor of the next page.
func (a *app) emitResult(res query.Result) error {
	for _, q := range res.Questions {
		if err := a.emit(q); err != nil {
			return err
		}
	}
	return a.emit(map[string]any{"cursor": res.Cursor, "truncated": res.Truncated})
}

func listCmd(a *app) *cobra.Command {
	var (
		sort string
		page pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions by new, popular, author:<uid> or tag:<tag>",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		s, err := query.ParseSort(sort)
		if err != nil {
			return err
		}
		dir, err := query.ParseDirection(page.dir)
		if err != nil {
			return err
		}
		res, err := a.forum().ListQuestions(ctx, query.Request{Sort: s, Direction: dir, Limit: page.limit, Cursor: page.cursor})
		if err != nil {
			return err
		}
		return a.emitResult(res)
	})
	cmd.Flags().StringVar(&sort, "sort", "new", "new, popular, author:<uid> or tag:<tag>")
	page.register(cmd)
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find questions whose title or body contains text",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		dir, err := query.ParseDirection(page.dir)
		if err != nil {
			return err
		}
		res, err := a.forum().SearchQuestions(ctx, args[0], dir, page.limit, page.cursor)
		if err != nil {
			return err
		}
		return a.emitResult(res)
	})
	page.register(cmd)
	return cmd
}

func getCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <qid>",
		Short: "Print a question with its replies",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		t, err := a.forum().GetThread(ctx, args[0])
		if err != nil {
			return err
		}
		return a.emit(t)
	})
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <qid>",
		Short: "Delete a question with its replies, likes and tag rows",
		Long: "Delete a question with its replies, likes and tag rows. " +
			"A truncated or partially failed run can be repeated.",
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		res, err := a.forum().DeleteQuestion(ctx, args[0])
		if emitErr := a.emit(deleteOutput(args[0], res)); emitErr != nil {
			return emitErr
		}
		return err
	})
	return cmd
}

func deleteOutput(qid string, res cascade.Result) map[string]any {
	return map[string]any{"qid": qid, "deleted": res.Deleted, "items": res.Items, "truncated": res.Truncated}
}

func reconcileCmd(a *app) *cobra.Command {
	var reply string
	cmd := &cobra.Command{
		Use:   "reconcile <qid>",
		Short: "Recount likes and replies from the stored rows",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		qid := args[0]
		f := a.forum()
		liked := qid
		if reply != "" {
			liked = reply
		}
		likes, err := f.ReconcileLikes(ctx, qid, liked)
		if err != nil {
			return err
		}
		out := map[string]any{"qid": qid, "likes": likes}
		if reply != "" {
			out["rid"] = reply
		} else {
			replies, err := f.ReconcileReplies(ctx, qid)
			if err != nil {
				return err
			}
			out["replies"] = replies
		}
		a.log.Info("reconciled counters", zap.String("qid", qid), zap.String("rid", reply), zap.Int64("likes", likes))
		return a.emit(out)
	})
	cmd.Flags().StringVar(&reply, "reply", "", "reconcile the likes of this reply instead of the question")
	return cmd
}

func pruneSavesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-saves <uid>",
		Short: "Remove a user's saves of deleted questions",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		n, err := a.forum().PruneSaved(ctx, repo.User(args[0]))
		if err != nil {
			return err
		}
		return a.emit(map[string]any{"user": args[0], "pruned": n})
	})
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Print the AWS identity the table is accessed with",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"aws-only": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Local.Enabled {
				return fmt.Errorf("whoami needs AWS; --local is set")
			}
			awsCfg, err := a.aws(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			id, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(cmd.Context(), &sts.GetCallerIdentityInput{})
			if err != nil {
				return fmt.Errorf("get caller identity: %w", err)
			}
			return a.emit(map[string]any{
				"account": aws.ToString(id.Account),
				"arn":     aws.ToString(id.Arn),
				"region":  awsCfg.Region,
				"table":   a.cfg.Table,
			})
		},
	}
}
