package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homeline/internal/agents"
	"homeline/internal/app"
	"homeline/internal/capability"
	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/migrate"
	"homeline/internal/repo"
	"homeline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Homeline CLI",
	Long: `Homeline runs property sale workflows with human-in-the-loop checkpoints.
- Workspace: your .homeline directory with the database; pipeline config is stored in the DB and imported explicitly.
- Property: a listing record; starting a workflow binds one workflow to one property, forever.
- Stages: input_validation -> marketing -> lead_management -> negotiation -> legal -> closure.
- Interrupts: when a stage needs a human, the workflow suspends durably; answer with 'hl resume'.
- Checkpoints: every node execution is snapshotted, view with 'hl history'.
- Event log: diary of changes, view with 'hl log tail'.`,
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
	viper.SetEnvPrefix("HOMELINE")
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
	rootCmd.AddCommand(propertyCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
}

func propertyCmd() *cobra.Command {
	prop := &cobra.Command{
		Use:   "property",
		Short: "Manage property listings",
	}
	prop.AddCommand(propertyCreateCmd())
	prop.AddCommand(propertyListCmd())
	prop.AddCommand(propertyGetCmd())
	prop.AddCommand(propertyUpdateCmd())
	prop.AddCommand(propertyDeleteCmd())
	return prop
}

func propertyCreateCmd() *cobra.Command {
	var p domain.Property
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a property",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), "", func(ctx context.Context, e *engine.Engine) error {
				created, err := e.CreateProperty(ctx, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "property id (random UUID if omitted)")
	cmd.Flags().StringVar(&p.Title, "title", "", "listing title")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&p.Address, "address", "", "street address")
	cmd.Flags().StringVar(&p.City, "city", "", "city")
	cmd.Flags().Float64Var(&p.Price, "price", 0, "asking price")
	cmd.Flags().IntVar(&p.Bedrooms, "bedrooms", 0, "bedroom count")
	cmd.Flags().IntVar(&p.Bathrooms, "bathrooms", 0, "bathroom count")
	cmd.Flags().Float64Var(&p.AreaSqm, "area-sqm", 0, "area in square meters")
	cmd.Flags().StringArrayVar(&p.Images, "image", []string{}, "image URL (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func propertyListCmd() *cobra.Command {
	var f repo.PropertyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProperties(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "City", "Price", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.City, p.Price, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (draft, listed, in_workflow, sold)")
	cmd.Flags().StringVar(&f.City, "city", "", "city filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows (0 = all)")
	return cmd
}

func propertyGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProperty(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func propertyUpdateCmd() *cobra.Command {
	var title, description, address, city, status string
	var price, areaSqm float64
	var bedrooms, bathrooms int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), "", func(ctx context.Context, e *engine.Engine) error {
				p, err := e.Repo.GetProperty(ctx, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("title") {
					p.Title = title
				}
				if cmd.Flags().Changed("description") {
					p.Description = description
				}
				if cmd.Flags().Changed("address") {
					p.Address = address
				}
				if cmd.Flags().Changed("city") {
					p.City = city
				}
				if cmd.Flags().Changed("price") {
					p.Price = price
				}
				if cmd.Flags().Changed("bedrooms") {
					p.Bedrooms = bedrooms
				}
				if cmd.Flags().Changed("bathrooms") {
					p.Bathrooms = bathrooms
				}
				if cmd.Flags().Changed("area-sqm") {
					p.AreaSqm = areaSqm
				}
				if cmd.Flags().Changed("status") {
					p.Status = status
				}
				updated, err := e.UpdateProperty(ctx, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "listing title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&address, "address", "", "street address")
	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().Float64Var(&price, "price", 0, "asking price")
	cmd.Flags().IntVar(&bedrooms, "bedrooms", 0, "bedroom count")
	cmd.Flags().IntVar(&bathrooms, "bathrooms", 0, "bathroom count")
	cmd.Flags().Float64Var(&areaSqm, "area-sqm", 0, "area in square meters")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, listed, in_workflow, sold)")
	return cmd
}

func propertyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteProperty(ctx, args[0])
			})
		},
	}
	return cmd
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <property-id>",
		Short: "Start the sale workflow for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), args[0], func(ctx context.Context, e *engine.Engine) error {
				st, err := e.StartWorkflow(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printStatus(st)
			})
		},
	}
	return cmd
}

func resumeCmd() *cobra.Command {
	in := &humanInputFlags{}
	cmd := &cobra.Command{
		Use:   "resume <property-id>",
		Short: "Answer an interrupted workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), args[0], func(ctx context.Context, e *engine.Engine) error {
				st, err := e.ResumeWorkflow(ctx, args[0], in.input(), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printStatus(st)
			})
		},
	}
	in.register(cmd)
	return cmd
}

func messageCmd() *cobra.Command {
	in := &humanInputFlags{}
	cmd := &cobra.Command{
		Use:   "message <property-id>",
		Short: "Send a buyer or broker message to a parked workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), args[0], func(ctx context.Context, e *engine.Engine) error {
				st, err := e.SubmitMessage(ctx, args[0], in.input(), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printStatus(st)
			})
		},
	}
	in.register(cmd)
	return cmd
}

// humanInputFlags are the shared reply flags of resume and message.
type humanInputFlags struct {
	role, message        string
	leadID, email, phone string
}

func (f *humanInputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "broker", "who is answering (broker or lead)")
	cmd.Flags().StringVar(&f.message, "message", "", "reply text")
	cmd.Flags().StringVar(&f.leadID, "lead", "", "lead id the reply concerns (lead role)")
	cmd.Flags().StringVar(&f.email, "lead-email", "", "lead email, used to find the conversation when no id is given")
	cmd.Flags().StringVar(&f.phone, "lead-phone", "", "lead phone, used to find the conversation when no id is given")
	_ = cmd.MarkFlagRequired("message")
}

func (f *humanInputFlags) input() agents.HumanInput {
	return agents.HumanInput{
		Role:      domain.HumanRole(f.role),
		Response:  f.message,
		LeadID:    f.leadID,
		LeadEmail: f.email,
		LeadPhone: f.phone,
	}
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <property-id>",
		Short: "Show workflow status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), args[0], func(ctx context.Context, e *engine.Engine) error {
				st, err := e.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return printStatus(st)
			})
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <property-id>",
		Short: "Show checkpoint history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), args[0], func(ctx context.Context, e *engine.Engine) error {
				entries, err := e.History(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Seq", "TS", "Node", "Stage", "Interrupted"})
				for _, h := range entries {
					tw.AppendRow(table.Row{h.Seq, h.TS, h.Node, h.Stage, h.Interrupted})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage pipeline config",
		Long:  "Pipeline config holds the workflow thresholds: quality score for marketing, auto-reject ratio for offers, lead qualification score, and the retry limit. Stored in the DB; import from homeline.yml explicitly.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	var propertyID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective pipeline config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ConfigForProperty(ctx, workspace, propertyID, r)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "property id (omit for workspace default)")
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath, propertyID string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import pipeline config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertPipelineConfig(ctx, propertyID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	cmd.Flags().StringVar(&propertyID, "property", "", "property id the config applies to (omit for workspace default)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default homeline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a YAML config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				filePath = config.Path(viper.GetString("workspace"))
			}
			_, err := config.FromFile(filePath)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config (defaults to workspace homeline.yml)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: property edits, checkpoints, stage changes, interrupts, and resumes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var propertyID, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, propertyID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Property", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.PropertyID, e.EntityKind + "/" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&propertyID, "property", "", "property id filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	keys.AddCommand(keysCreateCmd())
	keys.AddCommand(keysListCmd())
	keys.AddCommand(keysDeleteCmd())
	return keys
}

func keysCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (plaintext printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			plaintext := "hl_" + hex.EncodeToString(raw)
			key := domain.APIKey{
				ID:      uuid.NewString(),
				ActorID: actor,
				Name:    name,
				KeyHash: repo.HashAPIKey(plaintext),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": plaintext})
				}
				fmt.Printf("Created key %s for %s\n", key.ID, key.ActorID)
				fmt.Printf("Plaintext (save now, not shown again): %s\n", plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func keysListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id filter")
	return cmd
}

func keysDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowAnonymous bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, capability.Defaults(nil))
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("HOMELINE_JWT_SECRET"),
				AllowAnonymous: allowAnonymous,
			}
			if authCfg.JWTSecret == "" && !allowAnonymous {
				return fmt.Errorf("HOMELINE_JWT_SECRET is required unless --allow-anonymous is set")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Workspace: workspace, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Homeline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "accept unauthenticated requests (dev only)")
	return cmd
}

// --- helpers ---

// withEngine opens the workspace database and builds an engine with the
// pipeline config effective for propertyID ("" = workspace default).
func withEngine(ctx context.Context, propertyID string, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ConfigForProperty(ctx, workspace, propertyID, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, capability.Defaults(nil))
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printStatus(st domain.WorkflowStatus) error {
	if viper.GetBool("json") {
		return printJSON(st)
	}
	fmt.Printf("Property: %s\n", st.PropertyID)
	fmt.Printf("Stage: %s\n", st.CurrentStage)
	if st.Completed {
		fmt.Println("Completed: yes")
	}
	if st.HumanInterventionRequired {
		fmt.Println("Waiting for human input")
		if st.NextAction != "" {
			fmt.Printf("Next action: %s\n", st.NextAction)
		}
	}
	if st.Error != "" {
		fmt.Printf("Error: %s\n", st.Error)
	}
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

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
