package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhubert/turnbench-core/game"
	"github.com/zhubert/turnbench-core/parser"
	"github.com/zhubert/turnbench-core/service"
	"github.com/zhubert/turnbench-core/store"
)

func (a *app) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"s"},
		Short:   "Create, play and edit game sessions",
	}
	cmd.AddCommand(
		a.sessionCreateCmd(),
		a.sessionPlayCmd(),
		a.sessionRunCmd(),
		a.sessionShowCmd(),
		a.sessionHistoryCmd(),
		a.sessionUpdateCmd(),
		a.sessionCopyCmd(),
		a.sessionDeleteCmd(),
		a.sessionListCmd(),
		a.sessionExportCmd(),
	)
	return cmd
}

func (a *app) sessionCreateCmd() *cobra.Command {
	var (
		setupID   string
		mode      string
		llmRef    string
		maxRounds int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session for a setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if llmRef == "" {
				llmRef = a.cfg.Provider.Model
			}
			s, err := svc.CreateSession(cmd.Context(), service.CreateRequest{
				Mode:      game.Mode(mode),
				LLMRef:    llmRef,
				SetupID:   setupID,
				MaxRounds: maxRounds,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&setupID, "setup", "", "setup id (see `turnbench setups list`)")
	cmd.Flags().StringVar(&mode, "mode", string(game.ModeClassic), "classic or nightmare")
	cmd.Flags().StringVar(&llmRef, "llm", "", "model to play (default provider.model)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "round limit (default default_max_rounds)")
	_ = cmd.MarkFlagRequired("setup")
	return cmd
}

func (a *app) sessionPlayCmd() *cobra.Command {
	var (
		turnNum int
		effort  string
	)
	cmd := &cobra.Command{
		Use:   "play <session-id>",
		Short: "Play the next turn, or replay --turn and discard what followed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.preflight(); err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := svc.PlayTurn(cmd.Context(), args[0], service.PlayRequest{
				TurnNum:         turnNum,
				ReasoningEffort: a.effort(effort),
			})
			if err != nil {
				return notFoundHint(err)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().IntVar(&turnNum, "turn", 0, "turn number to replay")
	cmd.Flags().StringVar(&effort, "effort", "", "reasoning effort (low, medium, high)")
	return cmd
}

func (a *app) sessionRunCmd() *cobra.Command {
	var (
		maxTurns int
		effort   string
	)
	cmd := &cobra.Command{
		Use:   "run <session-id>",
		Short: "Play turns until the game ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.preflight(); err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := svc.Run(cmd.Context(), args[0], a.effort(effort), maxTurns)
			if err != nil {
				return notFoundHint(err)
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no turns played")
				return nil
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "stop after this many turns (0 plays to the end)")
	cmd.Flags().StringVar(&effort, "effort", "", "reasoning effort (low, medium, high)")
	return cmd
}

func (a *app) effort(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Provider.ReasoningEffort
}

func (a *app) sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			s, err := svc.GetSession(cmd.Context(), args[0])
			if err != nil {
				return notFoundHint(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func (a *app) sessionHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "List the recorded turns of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			history, err := svc.TurnHistory(cmd.Context(), args[0])
			if err != nil {
				return notFoundHint(err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TURN\tROUND\tSTAGE\tCHOICE\tRESULT")
			for _, rec := range history {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", rec.TurnNum, rec.RoundNum, rec.Stage, choiceOf(rec), resultOf(rec))
			}
			return w.Flush()
		},
	}
}

// patchFlags edit a recorded turn. Only flags that were set change the record.
type patchFlags struct {
	turn      int
	prompt    string
	reasoning string
	guess     string
	verifier  string
	submit    string
	skip      bool
}

func (p *patchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.turn, "turn", 0, "turn number to edit")
	cmd.Flags().StringVar(&p.prompt, "prompt", "", "replacement prompt")
	cmd.Flags().StringVar(&p.reasoning, "reasoning", "", "replacement reasoning")
	cmd.Flags().StringVar(&p.guess, "guess", "", "replacement proposal code")
	cmd.Flags().StringVar(&p.verifier, "verifier", "", "replacement verifier choice")
	cmd.Flags().StringVar(&p.submit, "submit", "", "replacement submitted code")
	cmd.Flags().BoolVar(&p.skip, "skip", false, "turn a deduce submission into a skip")
}

// record builds the edited record from the session's history, or returns
// nil when no turn was named.
func (p *patchFlags) record(cmd *cobra.Command, history []game.TurnRecord) (*game.TurnRecord, error) {
	if p.turn == 0 {
		return nil, nil
	}
	if p.turn < 1 || p.turn > len(history) {
		return nil, &game.OutOfRangeError{TurnNum: p.turn, HistoryLen: len(history)}
	}
	rec := history[p.turn-1]
	f := cmd.Flags()
	if f.Changed("prompt") {
		rec.Prompt = p.prompt
	}
	if f.Changed("reasoning") {
		rec.Reasoning = p.reasoning
	}
	if f.Changed("guess") {
		rec.GuessCode = p.guess
	}
	if f.Changed("verifier") {
		rec.VerifierChoice = p.verifier
	}
	if f.Changed("submit") {
		rec.SubmittedCode = p.submit
		rec.DeduceSkip = false
	}
	if f.Changed("skip") && p.skip {
		rec.DeduceSkip = true
		rec.SubmittedCode = ""
	}
	return &rec, nil
}

func (a *app) sessionUpdateCmd() *cobra.Command {
	var patch patchFlags
	cmd := &cobra.Command{
		Use:   "update <session-id>",
		Short: "Edit a recorded turn in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			history, err := svc.TurnHistory(cmd.Context(), args[0])
			if err != nil {
				return notFoundHint(err)
			}
			rec, err := patch.record(cmd, history)
			if err != nil {
				return err
			}
			if err := svc.UpdateSession(cmd.Context(), args[0], rec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), args[0])
			return nil
		},
	}
	patch.register(cmd)
	return cmd
}

func (a *app) sessionCopyCmd() *cobra.Command {
	var (
		patch  patchFlags
		llmRef string
	)
	cmd := &cobra.Command{
		Use:   "copy <session-id>",
		Short: "Copy a session, optionally for another model and with an edited turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			history, err := svc.TurnHistory(cmd.Context(), args[0])
			if err != nil {
				return notFoundHint(err)
			}
			rec, err := patch.record(cmd, history)
			if err != nil {
				return err
			}
			id, err := svc.CopySession(cmd.Context(), args[0], llmRef, rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&llmRef, "llm", "", "model to play the copy")
	patch.register(cmd)
	return cmd
}

func (a *app) sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := svc.DeleteSession(cmd.Context(), id); err != nil {
					return notFoundHint(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
			}
			return nil
		},
	}
}

func (a *app) sessionListCmd() *cobra.Command {
	var filter store.SessionFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			list, err := svc.ListSessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLLM\tSETUP\tMODE\tTURNS\tROUNDS\tSTATUS")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ID, s.LLMRef, s.SetupID, s.Mode, s.TotalTurns, s.TotalRounds, status(s))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.LLMRef, "llm", "", "only sessions played by this model")
	cmd.Flags().StringVar(&filter.SetupID, "setup", "", "only sessions of this setup")
	return cmd
}

func (a *app) sessionExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the session transcript to the logs directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			path, err := svc.ExportTranscript(cmd.Context(), args[0])
			if err != nil {
				return notFoundHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func printRecord(w io.Writer, rec *game.TurnRecord) {
	fmt.Fprintf(w, "turn %d (round %d) %s: %s", rec.TurnNum, rec.RoundNum, rec.Stage, choiceOf(*rec))
	if r := resultOf(*rec); r != "" {
		fmt.Fprintf(w, " -> %s", r)
	}
	fmt.Fprintln(w)
}

func choiceOf(rec game.TurnRecord) string {
	switch rec.Stage {
	case game.StageProposal:
		return parser.FormatCodeChoice(rec.GuessCode)
	case game.StageQuestion:
		return rec.VerifierChoice
	case game.StageDeduce:
		if rec.DeduceSkip {
			return parser.Skip
		}
		return parser.FormatCodeChoice(rec.SubmittedCode)
	}
	return ""
}

func resultOf(rec game.TurnRecord) string {
	switch {
	case rec.Stage == game.StageQuestion:
		return rec.VerifierResult
	case rec.GameOver && rec.GameSuccess:
		return "solved"
	case rec.GameOver:
		return rec.GameOverReason
	}
	return ""
}

func status(s store.SessionSummary) string {
	switch {
	case s.GameSuccess:
		return "solved"
	case s.GameOver:
		return "over"
	}
	return "playing"
}
