package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigledger/internal/config"
	"gigledger/internal/db"
	"gigledger/internal/domain"
	"gigledger/internal/engine"
	"gigledger/internal/migrate"
	"gigledger/internal/server"
	"gigledger/internal/token"
)

var rootCmd = &cobra.Command{
	Use:   "gig",
	Short: "GigLedger CLI",
	Long: `GigLedger is a trust-mediated ledger for freelance marketplace work.
An admin curates who may participate, employers fund escrowed projects, and
freelancers are paid per approved task. Everything is recorded in an
append-only event log.`,
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
	viper.SetEnvPrefix("GIGLEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("identity", "local-user", "caller identity")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("identity", rootCmd.PersistentFlags().Lookup("identity"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(employerCmd())
	rootCmd.AddCommand(freelancerCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(overviewCmd())
	rootCmd.AddCommand(collectionCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func identity() string {
	return viper.GetString("identity")
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Initialized workspace at %s (db %s)\n", workspace, db.Path(workspace))
				return nil
			})
		},
	}
}

func adminCmd() *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Marketplace administration"}
	admin.AddCommand(adminInitCmd())
	admin.AddCommand(adminFundCmd())
	return admin
}

func adminInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Claim the marketplace admin role for --identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				admin, err := e.InitializeAdmin(ctx, identity())
				if err != nil {
					return err
				}
				return printJSONOrTable(admin)
			})
		},
	}
}

func adminFundCmd() *cobra.Command {
	var owner string
	var amount int64
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an identity's token balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" || amount <= 0 {
				return fmt.Errorf("--owner and positive --amount required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.FundAccount(ctx, identity(), owner, amount); err != nil {
					return err
				}
				bal, err := e.Balance(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Printf("%s balance: %d\n", owner, bal)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner identity")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to credit")
	return cmd
}

func employerCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employer", Short: "Employer registry"}
	emp.AddCommand(employerAddCmd())
	emp.AddCommand(employerRemoveCmd())
	emp.AddCommand(employerShowCmd())
	emp.AddCommand(employerListCmd())
	return emp
}

func employerAddCmd() *cobra.Command {
	var id, userName, company string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Whitelist an employer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emp, err := e.WhitelistEmployer(ctx, identity(), id, userName, company)
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "employer identity")
	cmd.Flags().StringVar(&userName, "name", "", "display name")
	cmd.Flags().StringVar(&company, "company", "", "company name")
	return cmd
}

func employerRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an employer from the whitelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveEmployer(ctx, identity(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "employer identity")
	return cmd
}

func employerShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an employer registry entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emp, err := e.Employer(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "employer identity")
	return cmd
}

func employerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List employers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListEmployers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Identity", "Name", "Company", "Active"})
				for _, emp := range items {
					tw.AppendRow(table.Row{emp.Identity, emp.UserName, emp.CompanyName, emp.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func freelancerCmd() *cobra.Command {
	fl := &cobra.Command{Use: "freelancer", Short: "Freelancer registry"}
	fl.AddCommand(freelancerAddCmd())
	fl.AddCommand(freelancerRemoveCmd())
	fl.AddCommand(freelancerShowCmd())
	fl.AddCommand(freelancerListCmd())
	return fl
}

func freelancerAddCmd() *cobra.Command {
	var id, userName, profession string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Whitelist a freelancer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fl, err := e.WhitelistFreelancer(ctx, identity(), id, userName, domain.Profession(profession))
				if err != nil {
					return err
				}
				return printJSONOrTable(fl)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "freelancer identity")
	cmd.Flags().StringVar(&userName, "name", "", "display name")
	cmd.Flags().StringVar(&profession, "profession", "", "developer|designer|content_writer")
	return cmd
}

func freelancerRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a freelancer from the whitelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveFreelancer(ctx, identity(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "freelancer identity")
	return cmd
}

func freelancerShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a freelancer registry entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fl, err := e.Freelancer(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(fl)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "freelancer identity")
	return cmd
}

func freelancerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List freelancers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListFreelancers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Identity", "Name", "Profession", "Active"})
				for _, fl := range items {
					tw.AppendRow(table.Row{fl.Identity, fl.UserName, fl.Profession, fl.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectDetailsCmd())
	prj.AddCommand(projectAcceptCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectEscrowCmd())
	prj.AddCommand(projectRateCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var number uint64
	var title string
	var budget int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a project and fund its escrow from --identity's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.InitializeProject(ctx, identity(), number, title, budget)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().Uint64Var(&number, "number", 1, "project number, unique per employer")
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().Int64Var(&budget, "budget", 0, "total budget")
	return cmd
}

func projectDetailsCmd() *cobra.Command {
	var addr, description, requirement, deadline string
	cmd := &cobra.Command{
		Use:   "details",
		Short: "Attach description, required profession and deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddProjectDetails(ctx, identity(), addr, description, domain.Profession(requirement), deadline)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "project", "", "project address")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&requirement, "requirement", "", "required profession")
	cmd.Flags().StringVar(&deadline, "deadline", "", "RFC3339 deadline")
	return cmd
}

func projectAcceptCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept a project as --identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AcceptProject(ctx, identity(), addr)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "project", "", "project address")
	return cmd
}

func projectShowCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project and its tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Project(ctx, addr)
				if err != nil {
					return err
				}
				tasks, err := e.Tasks(ctx, addr)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"project": p, "tasks": tasks})
			})
		},
	}
	cmd.Flags().StringVar(&addr, "project", "", "project address")
	return cmd
}

func projectListCmd() *cobra.Command {
	var employer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Projects(ctx, employer)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Addr", "Employer", "#", "Title", "Status", "Remaining", "Tasks"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Addr, p.Employer, p.Number, p.Title, p.Status,
						fmt.Sprintf("%d/%d", p.RemainingBudget, p.TotalBudget),
						fmt.Sprintf("%d/%d", p.TasksCompleted, p.TasksCount)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&employer, "employer", "", "filter by employer identity")
	return cmd
}

func projectEscrowCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Show a project's escrow and vault balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				esc, err := e.Escrow(ctx, addr)
				if err != nil {
					return err
				}
				vault, err := e.VaultBalance(ctx, addr)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"escrow": esc, "vault_balance": vault})
			})
		},
	}
	cmd.Flags().StringVar(&addr, "project", "", "project address")
	return cmd
}

func projectRateCmd() *cobra.Command {
	var addr, feedback string
	var stars int
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Rate the freelancer who delivered a completed project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rating, err := e.RateFreelancer(ctx, identity(), addr, stars, feedback)
				if err != nil {
					return err
				}
				return printJSONOrTable(rating)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "project", "", "project address")
	cmd.Flags().IntVar(&stars, "stars", 0, "1-5 stars")
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback text")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskSubmitCmd())
	task.AddCommand(taskApproveCmd())
	task.AddCommand(taskRejectCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var project, title, description string
	var number uint64
	var budget int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a budgeted task to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddTask(ctx, identity(), project, number, title, description, budget)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project address")
	cmd.Flags().Uint64Var(&number, "number", 1, "task number, unique within the project")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().Int64Var(&budget, "budget", 0, "task budget")
	return cmd
}

func taskShowCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a task and its submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--task required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Task(ctx, addr)
				if err != nil {
					return err
				}
				subs, err := e.Submissions(ctx, addr)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "submissions": subs})
			})
		},
	}
	cmd.Flags().StringVar(&addr, "task", "", "task address")
	return cmd
}

func taskSubmitCmd() *cobra.Command {
	var addr, description, pocType, proof string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit proof of work as --identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--task required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SubmitTask(ctx, identity(), addr, description, domain.PocType(pocType), proof)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "task", "", "task address")
	cmd.Flags().StringVar(&description, "description", "", "submission notes")
	cmd.Flags().StringVar(&pocType, "poc-type", "", "unit_tests|design_link|document_link")
	cmd.Flags().StringVar(&proof, "proof", "", "proof reference")
	return cmd
}

func taskApproveCmd() *cobra.Command {
	var addr, destination string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve an in-review task and release its budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" || destination == "" {
				return fmt.Errorf("--task and --destination required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ApproveTask(ctx, identity(), addr, destination)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "task", "", "task address")
	cmd.Flags().StringVar(&destination, "destination", "", "freelancer identity to pay")
	return cmd
}

func taskRejectCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "reject",
		Short: "Reject an in-review task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--task required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RejectTask(ctx, identity(), addr)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "task", "", "task address")
	return cmd
}

func overviewCmd() *cobra.Command {
	ov := &cobra.Command{Use: "overview", Short: "Freelancer reputation"}
	ov.AddCommand(overviewInitCmd())
	ov.AddCommand(overviewShowCmd())
	return ov
}

func overviewInitCmd() *cobra.Command {
	var freelancer string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a freelancer's overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			if freelancer == "" {
				return fmt.Errorf("--freelancer required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.InitializeOverview(ctx, identity(), freelancer)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&freelancer, "freelancer", "", "freelancer identity")
	return cmd
}

func overviewShowCmd() *cobra.Command {
	var freelancer string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a freelancer's overview and ratings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if freelancer == "" {
				return fmt.Errorf("--freelancer required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Overview(ctx, freelancer)
				if err != nil {
					return err
				}
				ratings, err := e.Ratings(ctx, freelancer)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"overview": o, "ratings": ratings})
			})
		},
	}
	cmd.Flags().StringVar(&freelancer, "freelancer", "", "freelancer identity")
	return cmd
}

func collectionCmd() *cobra.Command {
	col := &cobra.Command{Use: "collection", Short: "Badge collections"}
	col.AddCommand(collectionCreateCmd())
	col.AddCommand(collectionMintCmd())
	return col
}

func collectionCreateCmd() *cobra.Command {
	var name, uri string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a badge collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCollection(ctx, identity(), name, uri)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "collection name")
	cmd.Flags().StringVar(&uri, "uri", "", "metadata URI")
	return cmd
}

func collectionMintCmd() *cobra.Command {
	var addr, name, uri string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a badge for --identity into a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--collection required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.MintBadge(ctx, identity(), addr, name, uri)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "collection", "", "collection address")
	cmd.Flags().StringVar(&name, "name", "", "badge name")
	cmd.Flags().StringVar(&uri, "uri", "", "metadata URI")
	return cmd
}

func balanceCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a token balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = identity()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				account, err := e.Tokens.Account(ctx, owner)
				if errors.Is(err, token.ErrAccountNotFound) {
					fmt.Printf("%s balance: 0\n", owner)
					return nil
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(account)
				}
				fmt.Printf("%s balance: %d\n", owner, account.Balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner (defaults to --identity)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var limit int
	var entityKind, entityAddr string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Event
				var err error
				if entityAddr != "" {
					items, err = e.Repo.EntityEvents(ctx, entityKind, entityAddr, limit)
				} else {
					items, err = e.Repo.LatestEvents(ctx, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityAddr, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "filter by entity kind")
	cmd.Flags().StringVar(&entityAddr, "entity", "", "filter by entity address")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, *cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("GIGLEDGER_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("GIGLEDGER_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving GigLedger API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, *cfg)
	return fn(ctx, e)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}
