package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/smalyshev/TabulistBot/pkg/config"
	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/probe"
	"github.com/smalyshev/TabulistBot/pkg/updater"
)

func updateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "force", Usage: "save even when the data did not change"},
		&cli.BoolFlag{Name: "dry-run", Usage: "print the new data pages instead of saving them"},
	}
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tracked pages",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			recs, err := a.store.ListByWiki(ctx, a.cfg.Wiki.Name)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Fprintf(a.out, "%d\t%s\t%s\n", rec.ID, rec.Status, rec.Page)
			}
			return nil
		},
	}
}

func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the status record of one page",
		ArgsUsage: " <id|title>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", cmd.Args().Len())
			}
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.resolve(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "id:        %d\n", rec.ID)
			fmt.Fprintf(a.out, "wiki:      %s\n", rec.Wiki)
			fmt.Fprintf(a.out, "page:      %s\n", rec.Page)
			fmt.Fprintf(a.out, "status:    %s\n", rec.Status)
			fmt.Fprintf(a.out, "message:   %s\n", rec.Message)
			fmt.Fprintf(a.out, "timestamp: %s\n", rec.Timestamp.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func UpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update the data page of one tracked page",
		ArgsUsage: " <id|title>",
		Flags:     updateFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", cmd.Args().Len())
			}
			a, err := newApp(ctx, cmd, appOptions{force: cmd.Bool("force"), dryRun: cmd.Bool("dry-run")})
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.resolve(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			if err := a.login(ctx); err != nil {
				return err
			}
			res, err := a.updater.UpdatePage(ctx, rec.ID)
			if res == nil {
				return err
			}
			if cmd.Bool("verbose") {
				fmt.Fprintf(a.out, "%s: %s %s\n", res.Page, res.Status, res.Message)
			}
			return err
		},
	}
}

func UpdateAllCommand() *cli.Command {
	flags := append(updateFlags(),
		&cli.BoolFlag{Name: "list-only", Usage: "refresh the page list without updating"},
		&cli.BoolFlag{Name: "progress", Usage: "show a progress spinner"},
	)
	return &cli.Command{
		Name:        "update-all",
		Usage:       "Refresh the page list and update every tracked page",
		Description: `Finds all talk pages transcluding the configured template, records new ones, drops the ones that are gone, then runs the update for every page that is not currently running.`,
		Flags:       flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, appOptions{force: cmd.Bool("force"), dryRun: cmd.Bool("dry-run")})
			if err != nil {
				return err
			}
			defer a.close()
			return a.updateAll(ctx, cmd.Bool("list-only"), cmd.Bool("progress"))
		},
	}
}

func (a *app) updateAll(ctx context.Context, listOnly, showProgress bool) error {
	found, err := a.discoverer.RefreshPageList(ctx)
	if err != nil {
		return err
	}
	if listOnly {
		return nil
	}
	if err := a.login(ctx); err != nil {
		return err
	}

	var progress updater.Progress
	if showProgress {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.out))
		s.Suffix = fmt.Sprintf(" updating %d pages", found.Found)
		s.Start()
		defer s.Stop()
		progress = func(done, total int, res *updater.Result) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" %d/%d", done, total)
			if res != nil {
				s.Suffix += " " + res.Page
			}
			s.Unlock()
		}
	}

	_, err = a.updater.UpdateAll(ctx, progress)
	return err
}

func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check that the database, wiki and query service are reachable",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, appOptions{console: true})
			if err != nil {
				return err
			}
			defer a.close()

			results := probe.Run(ctx, a.probes())
			for _, r := range results {
				fmt.Fprintln(a.out, r.String())
			}
			return probe.AnalyzeResults(results)
		},
	}
}

func InitConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write a config file with default values",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if err := config.GenerateDefault(path); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(stdout(cmd), "Config file generated: %s\n", path)
			return nil
		},
	}
}

// resolve finds a record by numeric id or by talk page title.
func (a *app) resolve(ctx context.Context, arg string) (*model.PageStatus, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		rec, err := a.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("%w: id %d", updater.ErrPageNotFound, id)
		}
		return rec, nil
	}
	return a.updater.GetPageByTitle(ctx, arg)
}
