package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/api"
	"github.com/pbaille/wayfind/internal/config"
	"github.com/pbaille/wayfind/internal/dialog"
	"github.com/pbaille/wayfind/internal/dify"
	"github.com/pbaille/wayfind/internal/domain"
	"github.com/pbaille/wayfind/internal/graph"
	"github.com/pbaille/wayfind/internal/journey"
	"github.com/pbaille/wayfind/internal/logging"
	"github.com/pbaille/wayfind/internal/observability"
	"github.com/pbaille/wayfind/internal/store"
	"github.com/pbaille/wayfind/internal/wordcloud"
)

var (
	dbPath     string
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wayfind",
		Short:         "Guided topic exploration, one question at a time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(topicCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(reflectCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(wordsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app wires the service graph for one command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	level   zap.AtomicLevel
	store   *store.Store
	svc     *journey.Service
	metrics *observability.Metrics
}

type appOptions struct {
	withMetrics bool
	quiet       bool
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.quiet && !verbose {
		level = "warn"
	}
	logger, atomic, err := logging.New(level, cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	repo := store.NewRepository(s)

	words, err := wordcloud.Load(repo)
	if err != nil {
		s.Close()
		return nil, err
	}

	var metrics *observability.Metrics
	if opts.withMetrics {
		metrics = observability.NewMetrics("wayfind")
	}

	var (
		answerer dialog.Answerer      = dify.Offline{}
		topics   journey.TopicService = dify.Offline{}
	)
	if cfg.DifyConfigured() {
		client, err := dify.New(dify.Config{
			BaseURL: cfg.Dify.BaseURL,
			User:    cfg.Dify.User,
			Timeout: cfg.GetDifyTimeout(),
			Keys: dify.Keys{
				Explore: cfg.Dify.ExploreKey,
				Options: cfg.Dify.OptionsKey,
				Check:   cfg.Dify.CheckKey,
				Expand:  cfg.Dify.ExpandKey,
			},
		}, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		answerer, topics = client, client
	} else {
		logger.Warn("dify app keys not configured, using offline answers")
	}

	svc := journey.NewService(repo, journey.Options{
		Config: journey.Config{
			Grid: graph.Grid{
				Size:   cfg.Journey.GridSize,
				Width:  cfg.Journey.CanvasWidth,
				Height: cfg.Journey.CanvasHeight,
			},
			RevealDelay: cfg.GetRevealDelay(),
			AutoExtend:  cfg.Journey.AutoExtend,
			RecentLimit: cfg.Journey.RecentLimit,
		},
		Answerer: answerer,
		Topics:   topics,
		Words:    words,
		Metrics:  metrics,
		Logger:   logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		level:   atomic,
		store:   s,
		svc:     svc,
		metrics: metrics,
	}, nil
}

// Close waits for pending reveals so their notifications are stored
func (a *app) Close() {
	a.svc.Wait()
	a.logger.Sync()
	a.store.Close()
}

func cliApp() (*app, error) {
	return newApp(appOptions{quiet: true})
}

// resolveNode accepts a 1-based node index or a node id prefix
func resolveNode(svc *journey.Service, journeyID, arg string) (string, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		d, err := svc.Journey(journeyID)
		if err != nil {
			return "", err
		}
		if i < 1 || i > len(d.Journey.NodeIDs) {
			return "", fmt.Errorf("node index %d out of range (1-%d)", i, len(d.Journey.NodeIDs))
		}
		return d.Journey.NodeIDs[i-1], nil
	}
	return svc.ResolveNodeID(journeyID, arg)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{withMetrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			watcher, err := config.NewWatcher(configPath, a.cfg, a.logger)
			if err != nil {
				a.logger.Warn("config reload disabled", zap.Error(err))
			} else {
				defer watcher.Stop()
				watcher.OnChange(func(c *config.Config) {
					if err := logging.SetLevel(a.level, c.Logging.Level); err != nil {
						a.logger.Warn("ignoring log level", zap.Error(err))
					}
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.New(a.svc, api.Options{
				Metrics:        a.metrics,
				Logger:         a.logger,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
			})
			return server.Run(ctx, addr, a.cfg.GetShutdownTimeout())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}

func topicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topic [word]",
		Short: "Screen a topic word and show its starting options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svc.ProposeTopic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProposal(p)
			return nil
		},
	}
}

func printProposal(p *journey.Proposal) {
	fmt.Printf("Topic:      %s\n", p.Word)
	fmt.Printf("Difficulty: %s\n", p.Difficulty)
	fmt.Printf("\nStarting options:\n")
	for i, o := range p.Options {
		fmt.Printf("  %d. %s\n", i+1, o)
	}
	if len(p.Angles) > 0 {
		fmt.Printf("\nAngles:\n")
		for _, angle := range p.Angles {
			fmt.Printf("  - %s\n", angle)
		}
	}
}

func startCmd() *cobra.Command {
	var (
		option int
		choice string
	)

	cmd := &cobra.Command{
		Use:   "start [word]",
		Short: "Start a journey from a topic word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svc.ProposeTopic(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			chosen := strings.TrimSpace(choice)
			if chosen == "" {
				if option < 1 || option > len(p.Options) {
					return fmt.Errorf("option %d out of range (1-%d)", option, len(p.Options))
				}
				chosen = p.Options[option-1]
			}

			j, err := a.svc.StartJourney(cmd.Context(), p.Start(chosen))
			if err != nil {
				return err
			}

			fmt.Printf("Started journey: %s\n", shortID(j.ID))
			fmt.Printf("Question: %s\n", j.CoreQuestion)
			fmt.Printf("\nAsk it with: wayfind ask %s 1 <your question>\n", shortID(j.ID))
			return nil
		},
	}

	cmd.Flags().IntVarP(&option, "option", "o", 1, "starting option number")
	cmd.Flags().StringVar(&choice, "choice", "", "custom starting question")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent journeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeys, err := a.svc.Recent(limit)
			if err != nil {
				return err
			}

			if len(journeys) == 0 {
				fmt.Println("No journeys yet. Use 'wayfind start' to create one.")
				return nil
			}

			printJourneys(journeys)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of journeys to show")
	return cmd
}

func printJourneys(journeys []*domain.Journey) {
	for _, j := range journeys {
		fmt.Printf("%s  %-12s %2d nodes  %s\n",
			shortID(j.ID), truncate(j.Title, 12), len(j.NodeIDs), truncate(j.CoreQuestion, 50))
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [journey]",
		Short: "Show a journey and its revealed nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			d, err := a.svc.Journey(id)
			if err != nil {
				return err
			}
			view, err := a.svc.Open(cmd.Context(), id)
			if err != nil {
				return err
			}

			j := d.Journey
			fmt.Printf("ID:       %s\n", j.ID)
			fmt.Printf("Topic:    %s\n", j.Title)
			fmt.Printf("Question: %s\n", j.CoreQuestion)
			fmt.Printf("Created:  %s\n", j.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Nodes:    %d revealed of %d\n", view.Visible, view.Total)

			for i, n := range d.Nodes {
				if i >= view.Visible {
					break
				}
				fmt.Printf("\n%d. %s [%s]\n", i+1, n.Title, n.Mode.Label())
				fmt.Printf("   Q: %s\n", n.Question())
				if n.Answered() {
					fmt.Printf("   A: %s\n", truncate(n.Answer(), 200))
				}
			}
			if view.Continue {
				fmt.Println("\nAnswer the last revealed node to continue.")
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search journeys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeys, err := a.svc.Search(args[0])
			if err != nil {
				return err
			}

			if len(journeys) == 0 {
				fmt.Println("No matching journeys found.")
				return nil
			}

			printJourneys(journeys)
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [journey] [node] [question]",
		Short: "Ask a node's single question",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeyID, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			// restore the reveal so the answer can advance it
			if _, err := a.svc.View(cmd.Context(), journeyID); err != nil {
				return err
			}
			nodeID, err := resolveNode(a.svc, journeyID, args[1])
			if err != nil {
				return err
			}

			fmt.Print("Asking... ")
			res, err := a.svc.Ask(cmd.Context(), nodeID, strings.Join(args[2:], " "))
			if err != nil {
				fmt.Println("rejected")
				return err
			}
			fmt.Println("done")

			printDialog(res)

			a.svc.Wait()
			for _, n := range a.svc.Notifications(journeyID) {
				fmt.Printf("\n%s\n", n.Message)
			}
			return nil
		},
	}
}

func printDialog(res dialog.Result) {
	for _, e := range res.State.History {
		switch e.Kind {
		case dialog.EntryAnswer:
			fmt.Printf("\n%s\n", e.Text)
		case dialog.EntryShare, dialog.EntryReflection:
			fmt.Printf("\n> %s\n", e.Text)
		}
	}
	for _, t := range res.Toasts {
		fmt.Printf("(%s) %s\n", t.Level, t.Message)
	}
}

func reflectCmd() *cobra.Command {
	var deep bool

	cmd := &cobra.Command{
		Use:   "reflect [journey] [node] [text]",
		Short: "Add a reflection to a node",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeyID, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			nodeID, err := resolveNode(a.svc, journeyID, args[1])
			if err != nil {
				return err
			}

			text := strings.Join(args[2:], " ")
			reflect := a.svc.ShareReflection
			if deep {
				reflect = a.svc.DeepReflection
			}
			res, err := reflect(nodeID, text)
			if err != nil {
				return err
			}
			printDialog(res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&deep, "deep", false, "record a deep reflection")
	return cmd
}

func noteCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "note [journey] [content]",
		Short: "Add a manual node to a journey",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeyID, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.svc.View(cmd.Context(), journeyID); err != nil {
				return err
			}
			n, err := a.svc.AddManualNode(cmd.Context(), journeyID, title, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("Added node: %s (%s)\n", shortID(n.ID), n.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "node title")
	return cmd
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next [journey]",
		Short: "Create the next exploration node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			journeyID, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			n, err := a.svc.CreateNextExploration(cmd.Context(), journeyID)
			if err != nil {
				return err
			}
			fmt.Printf("Created node: %s (%s)\n", shortID(n.ID), n.Title)
			fmt.Printf("Angle: %s\n", n.Angle)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export all journeys as JSON (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.svc.Export()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported %d journeys and %d nodes to %s\n", len(snap.Journeys), len(snap.Nodes), args[0])
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import journeys from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			var snap store.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("parse import: %w", err)
			}

			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Import(&snap); err != nil {
				return err
			}
			fmt.Printf("Imported %d journeys and %d nodes\n", len(snap.Journeys), len(snap.Nodes))
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [journey]",
		Short: "Delete a journey and its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.svc.ResolveJourneyID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Delete(id); err != nil {
				return err
			}
			fmt.Printf("Deleted journey: %s\n", shortID(id))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show journey and node counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.svc.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Journeys: %d (%d active this week)\n", st.TotalJourneys, st.ActiveJourneys)
			fmt.Printf("Nodes:    %d\n", st.TotalNodes)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
