// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/arcspire/mediasync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// setupCommand handles database initialization and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// runCommand exposes every registered task as a subcommand. Flags are
// generated from the task's input schema, so the CLI surface and the queue
// payload validate against the same declaration.
func runCommand(r *Runner) *cli.Command {
	run := &cli.Command{
		Name:  "run",
		Usage: "Enqueue or directly execute a task",
	}

	for _, def := range staticRegistry().Definitions() {
		def := def
		run.Commands = append(run.Commands, &cli.Command{
			Name:  def.Name,
			Usage: def.Description,
			Flags: append(flagsForSchema(def.Schema),
				&cli.BoolFlag{
					Name:  "direct",
					Usage: "Run in this process instead of enqueueing",
				},
				&cli.StringFlag{
					Name:  "user",
					Usage: "User id the run is attributed to",
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Output the result as JSON",
				},
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return r.RunTask(ctx, cmd, def)
			},
		})
	}

	return run
}

// tasksCommand lists registered task definitions.
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect registered tasks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered tasks with their inputs",
				Action: r.TasksList,
			},
		},
	}
}

// jobsCommand handles job history and cancellation operations.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect and manage job history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived jobs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show one job with its logs and metrics",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsShow,
			},
			{
				Name:  "delete",
				Usage: "Delete one archived job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JobsDelete,
			},
			{
				Name:  "cancel",
				Usage: "Request cooperative cancellation of a queued or running job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JobsCancel,
			},
		},
	}
}

// workerCommand runs the queue worker and, optionally, the cron scheduler.
func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the job queue worker",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "schedule",
				Usage: "Also run the configured cron schedules",
				Value: true,
			},
		},
		Action: r.Worker,
	}
}

// mediaCommand inspects tracked catalog items.
func mediaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "Inspect tracked catalog items",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show one tracked item by category and provider id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "type"},
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MediaShow,
			},
		},
	}
}

// scheduleCommand runs the cron scheduler standalone, without a worker.
func scheduleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "schedule",
		Usage:  "Run only the cron schedules, enqueueing for a separate worker",
		Action: r.Schedule,
	}
}

// flagsForSchema converts a task input schema into CLI flags.
func flagsForSchema(schema tasks.Schema) []cli.Flag {
	var flags []cli.Flag
	for _, field := range schema.Fields {
		switch field.Type {
		case tasks.FieldString:
			flag := &cli.StringFlag{Name: field.Name, Usage: field.Usage, Required: field.Required}
			if v, ok := field.Default.(string); ok {
				flag.Value = v
			}
			flags = append(flags, flag)
		case tasks.FieldInt:
			flag := &cli.IntFlag{Name: field.Name, Usage: field.Usage, Required: field.Required}
			if v, ok := field.Default.(int); ok {
				flag.Value = v
			}
			flags = append(flags, flag)
		case tasks.FieldBool:
			flag := &cli.BoolFlag{Name: field.Name, Usage: field.Usage, Required: field.Required}
			if v, ok := field.Default.(bool); ok {
				flag.Value = v
			}
			flags = append(flags, flag)
		case tasks.FieldStrings:
			flag := &cli.StringSliceFlag{Name: field.Name, Usage: field.Usage, Required: field.Required}
			if v, ok := field.Default.([]string); ok {
				flag.Value = v
			}
			flags = append(flags, flag)
		}
	}
	return flags
}

// inputFromFlags collects only the flags the user actually set, leaving
// defaults to schema validation so CLI and queued runs default identically.
func inputFromFlags(cmd *cli.Command, schema tasks.Schema) map[string]any {
	input := make(map[string]any)
	for _, field := range schema.Fields {
		if !cmd.IsSet(field.Name) {
			continue
		}
		switch field.Type {
		case tasks.FieldString:
			input[field.Name] = cmd.String(field.Name)
		case tasks.FieldInt:
			input[field.Name] = cmd.Int(field.Name)
		case tasks.FieldBool:
			input[field.Name] = cmd.Bool(field.Name)
		case tasks.FieldStrings:
			input[field.Name] = cmd.StringSlice(field.Name)
		}
	}
	return input
}
