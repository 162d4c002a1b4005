package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"text/template"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/agent-orchestrator/internal/config"
	"github.com/hochfrequenz/agent-orchestrator/internal/dispatch"
	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/issues"
	"github.com/hochfrequenz/agent-orchestrator/internal/notify"
	"github.com/hochfrequenz/agent-orchestrator/internal/prompt"
	"github.com/hochfrequenz/agent-orchestrator/internal/reconcile"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
	"github.com/hochfrequenz/agent-orchestrator/internal/review"
	"github.com/hochfrequenz/agent-orchestrator/internal/runner"
	"github.com/hochfrequenz/agent-orchestrator/internal/runstore"
	"github.com/hochfrequenz/agent-orchestrator/internal/worktree"
	"github.com/hochfrequenz/agent-orchestrator/tui"
	"github.com/hochfrequenz/agent-orchestrator/web/api"
)

var (
	runIssue      int
	runName       string
	runFromBranch string
	serveTUI      bool
	issuesLabel   string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an agent against a GitHub issue",
		RunE:  runRun,
	}
	runCmd.Flags().IntVar(&runIssue, "issue", 0, "issue number to work on")
	runCmd.Flags().StringVar(&runName, "name", "", "worktree name (default issue-<number>)")
	runCmd.Flags().StringVar(&runFromBranch, "from-branch", "", "continue on an existing branch")
	runCmd.MarkFlagRequired("issue")
	rootCmd.AddCommand(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server and review reconciler",
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "also show the terminal dashboard")
	rootCmd.AddCommand(serveCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	issuesCountCmd := &cobra.Command{
		Use:   "count",
		Short: "Count open issues with a label",
		RunE:  runIssuesCount,
	}
	issuesCountCmd.Flags().StringVar(&issuesLabel, "label", "", "label to count")
	issuesCountCmd.MarkFlagRequired("label")

	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "Issue queries",
	}
	issuesCmd.AddCommand(issuesCountCmd)
	rootCmd.AddCommand(issuesCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

const defaultIssuePrompt = `Work on GitHub issue #{{.IssueNumber}}: {{.Title}}

{{.Body}}

Commit your work to the branch {{.Branch}} and open a pull request when done.`

// newRenderer returns a template renderer for the configured prompt
// template, or nil when the built-in prompt should be used.
func newRenderer(cfg *config.Config) *prompt.Renderer {
	if cfg.Agent.PromptTemplate == "" {
		return nil
	}
	return prompt.DefaultRenderer(filepath.Dir(cfg.Agent.PromptTemplate), cfg.General.ProjectRoot)
}

func buildPrompt(cfg *config.Config, renderer *prompt.Renderer, issue issues.Issue, branch string) (string, error) {
	data := prompt.IssueData{
		IssueNumber: issue.Number,
		Title:       issue.Title,
		Body:        issue.Body,
		Branch:      branch,
	}

	if renderer != nil {
		return renderer.BuildIssuePrompt(filepath.Base(cfg.Agent.PromptTemplate), data)
	}

	data.Title = prompt.Sanitize(data.Title)
	data.Body = prompt.Sanitize(data.Body)
	tmpl, err := template.New("issue").Parse(defaultIssuePrompt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.General.ProjectRoot == "" {
		return fmt.Errorf("project_root not configured")
	}
	owner, repoName, err := cfg.GitHub.SplitRepo()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := issues.NewClient(cfg.GitHub.APIBase, owner, repoName, cfg.GitHub.Token())
	issue, err := client.Get(ctx, runIssue)
	if err != nil {
		return err
	}

	name := runName
	if name == "" {
		name = fmt.Sprintf("issue-%d", issue.Number)
	}

	promptText, err := buildPrompt(cfg, newRenderer(cfg), issue, worktree.BranchName(name))
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := registry.New(store)
	wt := worktree.NewManager(cfg.General.ProjectRoot)
	r := runner.New(runner.Config{
		Executable:        cfg.Agent.Executable,
		AbsoluteTimeout:   time.Duration(cfg.Agent.AbsoluteTimeout),
		InactivityTimeout: time.Duration(cfg.Agent.InactivityTimeout),
	}, reg, wt)

	events := reg.Subscribe()
	defer reg.Unsubscribe(events)

	runID, err := r.Start(ctx, runner.Spec{
		Name:        name,
		Label:       fmt.Sprintf("issue %d: %s", issue.Number, issue.Title),
		IssueNumber: issue.Number,
		Prompt:      promptText,
		FromBranch:  runFromBranch,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Started run %s for issue #%d\n", runID, issue.Number)

	notifier := buildNotifier(cfg)
	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case "activity":
				printActivity(ev)
			case "run_finished":
				run, ok := reg.Run(runID)
				if !ok {
					return fmt.Errorf("run %s vanished", runID)
				}
				if err := notifier.Send(notify.RunFinished(run)); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: notify: %v\n", err)
				}
				return printOutcome(run)
			}
		case <-ctx.Done():
			fmt.Println("Interrupted; waiting for the run to wind down")
			time.Sleep(2 * time.Second)
			return ctx.Err()
		}
	}
}

func printActivity(ev registry.Event) {
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		return
	}
	entries, ok := data["entries"].([]domain.ActivityEntry)
	if !ok {
		return
	}
	for _, e := range entries {
		prefix := "  "
		if e.Subagent {
			prefix = "  ↳ "
		}
		fmt.Printf("%s%s\n", prefix, e.Summary)
	}
}

func printOutcome(run *domain.Run) error {
	switch run.Status {
	case domain.RunComplete:
		fmt.Printf("Run completed")
		if run.Result != nil {
			fmt.Printf(" in %d turns ($%.2f)", run.Result.NumTurns, run.Result.CostUSD)
		}
		fmt.Println()
		return nil
	case domain.RunTimedOut:
		return fmt.Errorf("run timed out; output may be partial")
	default:
		return fmt.Errorf("run failed: %s", run.Error)
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	notifiers := []notify.Notifier{}
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

// startDispatcher wires queued runs to the runner. It needs a project
// checkout and a repo to fetch issues from; serve still works as a pure
// dashboard without them.
func startDispatcher(ctx context.Context, cfg *config.Config, reg *registry.Registry) error {
	if cfg.General.ProjectRoot == "" {
		return fmt.Errorf("project_root not configured")
	}
	owner, repoName, err := cfg.GitHub.SplitRepo()
	if err != nil {
		return err
	}

	renderer := newRenderer(cfg)
	if renderer != nil {
		stopWatch, err := renderer.Watch()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: prompt watcher: %v\n", err)
		} else {
			go func() {
				<-ctx.Done()
				stopWatch()
			}()
		}
	}

	client := issues.NewClient(cfg.GitHub.APIBase, owner, repoName, cfg.GitHub.Token())
	wt := worktree.NewManager(cfg.General.ProjectRoot)
	r := runner.New(runner.Config{
		Executable:        cfg.Agent.Executable,
		AbsoluteTimeout:   time.Duration(cfg.Agent.AbsoluteTimeout),
		InactivityTimeout: time.Duration(cfg.Agent.InactivityTimeout),
	}, reg, wt)

	build := func(ctx context.Context, q registry.QueuedRun) (runner.Spec, error) {
		issue, err := client.Get(ctx, q.IssueNumber)
		if err != nil {
			return runner.Spec{}, err
		}
		name := fmt.Sprintf("issue-%d", issue.Number)
		promptText, err := buildPrompt(cfg, renderer, issue, worktree.BranchName(name))
		if err != nil {
			return runner.Spec{}, err
		}
		return runner.Spec{
			Name:        name,
			Label:       fmt.Sprintf("issue %d: %s", issue.Number, issue.Title),
			IssueNumber: issue.Number,
			Prompt:      promptText,
		}, nil
	}

	go dispatch.New(reg, r, build, cfg.General.MaxParallelRuns).Run(ctx)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := registry.New(store)
	recent, err := store.ListRecentRuns(50)
	if err != nil {
		return err
	}
	reg.Restore(recent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := review.NewPoller(cfg.GitHub.APIBase, cfg.GitHub.Token())
	rec := reconcile.New(reg, poller, buildNotifier(cfg), "")
	if err := rec.Start(ctx); err != nil {
		return err
	}
	defer rec.Stop()

	if err := startDispatcher(ctx, cfg, reg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run dispatch disabled: %v\n", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := api.NewServer(reg, addr, cfg.Web.AccessToken)

	if serveTUI {
		go func() {
			if err := server.Start(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				stop()
			}
		}()
		p := tea.NewProgram(tui.NewModel(reg), tea.WithAltScreen())
		_, err := p.Run()
		return err
	}

	fmt.Printf("Dashboard listening at http://%s\n", addr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRecentRuns(20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tPR\tERROR")
	for _, run := range runs {
		pr := "-"
		if run.PullRequest != nil {
			pr = run.PullRequest.String()
		}
		errMsg := run.Error
		if errMsg == "" {
			errMsg = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			run.Label, run.Status, humanize.Time(run.StartedAt), pr, errMsg)
	}
	return w.Flush()
}

func runIssuesCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	owner, repoName, err := cfg.GitHub.SplitRepo()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := issues.NewClient(cfg.GitHub.APIBase, owner, repoName, cfg.GitHub.Token())
	count, err := client.CountOpen(ctx, issuesLabel)
	if err != nil {
		return err
	}

	fmt.Printf("%d open issues with label %q\n", count, issuesLabel)
	return nil
}
