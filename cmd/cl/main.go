package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseline/internal/app"
	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/repo"
	"caseline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline assigns incoming work items to the best-qualified available
staff member under individual and unit WIP limits, attaches a
priority-derived SLA deadline, and escalates breached assignments.

Core concepts:
- Workspace: the .caseline directory holding the database; caseline.yml
  beside it tunes SLA offsets, capacity thresholds and scoring weights.
- Directory: staff, units and skills mirrored from an external system
  (cl staff / cl unit / cl skill).
- Assignment: one work item bound to one staff member with a deadline;
  lifecycle assigned -> in_progress -> completed/cancelled.
- Sweep: the recurring SLA pass; runs inside 'cl serve' and on demand
  with 'cl sweep'.
- Event log: diary of every change, view with 'cl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(capacityCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(assignmentCmd())
	rootCmd.AddCommand(escalationsCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(unitCmd())
	rootCmd.AddCommand(skillCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	return cmd
}

func assignCmd() *cobra.Command {
	var workItemID, workItemType, priority, unitID string
	var skills []string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Auto-assign a work item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AutoAssign(ctx, engine.AssignRequest{
					WorkItemID:     workItemID,
					WorkItemType:   workItemType,
					RequiredSkills: skills,
					Priority:       priority,
					UnitID:         unitID,
					ActorID:        viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&workItemID, "work-item", "", "work item id")
	cmd.Flags().StringVar(&workItemType, "type", "", "work item type")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "required skill (repeatable)")
	cmd.Flags().StringVar(&priority, "priority", domain.PriorityNormal, "urgent, high or normal")
	cmd.Flags().StringVar(&unitID, "unit", "", "restrict candidates to a unit")
	_ = cmd.MarkFlagRequired("work-item")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func capacityCmd() *cobra.Command {
	var staffID, unitID string
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Check utilization for a staff member or a unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.CapacityCheck(ctx, engine.CapacityQuery{StaffID: staffID, UnitID: unitID})
				if err != nil {
					return err
				}
				return printJSONOrTable(report)
			})
		},
	}
	cmd.Flags().StringVar(&staffID, "staff", "", "staff id")
	cmd.Flags().StringVar(&unitID, "unit", "", "unit id")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA sweep pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(report)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Assignment totals by status and SLA state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				byStatus, err := e.Repo.CountAssignmentsBy(ctx, "status")
				if err != nil {
					return err
				}
				bySLA, err := e.Repo.CountAssignmentsBy(ctx, "sla_status")
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"assignments_by_status": byStatus,
					"assignments_by_sla":    bySLA,
				})
			})
		},
	}
	return cmd
}

func assignmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assignment", Short: "Inspect and move assignments"}
	cmd.AddCommand(assignmentListCmd())
	cmd.AddCommand(assignmentShowCmd())
	cmd.AddCommand(assignmentTransitionCmd("start", "Mark an assignment in progress",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Assignment, error) {
			return e.StartAssignment(ctx, id, actor)
		}))
	cmd.AddCommand(assignmentTransitionCmd("complete", "Complete an assignment",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Assignment, error) {
			return e.CompleteAssignment(ctx, id, actor)
		}))
	cmd.AddCommand(assignmentTransitionCmd("cancel", "Cancel an assignment",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Assignment, error) {
			return e.CancelAssignment(ctx, id, actor)
		}))
	return cmd
}

func assignmentListCmd() *cobra.Command {
	var f repo.AssignmentFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAssignments(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Work Item", "Assignee", "Priority", "Status", "SLA", "Deadline"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.WorkItemID, a.AssigneeID, a.Priority, a.Status, a.SLAStatus, a.SLADeadline})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.SLAStatus, "sla-status", "", "sla status filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func assignmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <assignment-id>",
		Short: "Show one assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAssignment(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func assignmentTransitionCmd(use, short string, fn func(engine.Engine, context.Context, string, string) (domain.Assignment, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <assignment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := fn(e, ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func escalationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "escalations",
		Short: "List escalation events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEscalations(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Assignment", "Created", "Reason"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.AssignmentID, ev.CreatedAt, ev.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "staff", Short: "Staff directory"}
	cmd.AddCommand(staffUpsertCmd())
	cmd.AddCommand(staffListCmd())
	cmd.AddCommand(staffAvailabilityCmd())
	return cmd
}

func staffUpsertCmd() *cobra.Command {
	var p domain.StaffProfile
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a staff profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if existing, err := e.Repo.GetStaff(ctx, p.ID); err == nil {
					p.CurrentAssignmentCount = existing.CurrentAssignmentCount
					p.CreatedAt = existing.CreatedAt
				}
				if err := e.UpsertStaff(ctx, p, viper.GetString("actor-id")); err != nil {
					return err
				}
				stored, err := e.Repo.GetStaff(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "staff id")
	cmd.Flags().StringVar(&p.UserID, "user", "", "directory user id")
	cmd.Flags().StringVar(&p.UnitID, "unit", "", "unit id")
	cmd.Flags().StringVar(&p.Role, "role", domain.RoleStaff, "staff, supervisor or admin")
	cmd.Flags().StringSliceVar(&p.Skills, "skill", nil, "skill id (repeatable)")
	cmd.Flags().IntVar(&p.IndividualWIPLimit, "wip-limit", 5, "individual WIP limit")
	cmd.Flags().StringVar(&p.AvailabilityStatus, "availability", domain.AvailabilityAvailable, "available, unavailable or on_leave")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func staffListCmd() *cobra.Command {
	var unitID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staff profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListStaff(ctx, unitID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Unit", "Role", "Skills", "Load", "Limit", "Availability"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.UnitID, p.Role, strings.Join(p.Skills, ","),
						p.CurrentAssignmentCount, p.IndividualWIPLimit, p.AvailabilityStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "unit filter")
	return cmd
}

func staffAvailabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability <staff-id> <status>",
		Short: "Set availability (available, unavailable, on_leave)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetStaffAvailability(ctx, args[0], args[1], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func unitCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "unit", Short: "Organizational units"}
	var u domain.OrganizationalUnit
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UpsertUnit(ctx, u, viper.GetString("actor-id")); err != nil {
					return err
				}
				stored, err := e.Repo.GetUnit(ctx, u.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	upsert.Flags().StringVar(&u.ID, "id", "", "unit id")
	upsert.Flags().StringVar(&u.Name, "name", "", "display name")
	upsert.Flags().IntVar(&u.UnitWIPLimit, "wip-limit", 20, "unit WIP limit")
	_ = upsert.MarkFlagRequired("id")
	cmd.AddCommand(upsert)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUnits(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return cmd
}

func skillCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "skill", Short: "Skill reference data"}
	var s domain.Skill
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a skill",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UpsertSkill(ctx, s, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	upsert.Flags().StringVar(&s.ID, "id", "", "skill id")
	upsert.Flags().StringVar(&s.Category, "category", "", "category")
	_ = upsert.MarkFlagRequired("id")
	cmd.AddCommand(upsert)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSkills(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().IntVarP(&f.Limit, "num", "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind filter")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	cmd.AddCommand(tail)
	return cmd
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "API keys"}
	var userID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.NewString() + uuid.NewString()
				k := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": k.ID, "user_id": k.UserID, "secret": secret})
			})
		},
	}
	create.Flags().StringVar(&userID, "user", "", "owning user id")
	create.Flags().StringVar(&name, "name", "", "key label")
	_ = create.MarkFlagRequired("user")
	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	cmd.AddCommand(revoke)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var sweepEvery string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server with the SLA sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conn, err := app.NewEngine(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CASELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			interval := e.Config.SweepInterval()
			if sweepEvery != "" {
				d, err := time.ParseDuration(sweepEvery)
				if err != nil || d <= 0 {
					return fmt.Errorf("invalid --sweep-every %q", sweepEvery)
				}
				interval = d
			}
			runner := &engine.SweepRunner{Engine: e, Interval: interval, Logger: log.Default()}
			runnerCtx, stopRunner := context.WithCancel(cmd.Context())
			defer stopRunner()
			go runner.Run(runnerCtx)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Caseline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs, metrics at /metrics), sweeping every %s\n",
				addr, basePath, interval)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().StringVar(&sweepEvery, "sweep-every", "", "override the configured sweep interval")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.NewEngine(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, _, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
