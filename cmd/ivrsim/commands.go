package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ivr-platform/internal/auth"
	"ivr-platform/internal/config"
	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/ivr"
	"ivr-platform/internal/rbac"
	"ivr-platform/internal/routing"
	"ivr-platform/internal/session"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildChatCmd() *cobra.Command {
	var (
		callID      string
		promptsPath string
		targets     string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold one simulated call on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts := dialogue.DefaultPrompts()
			if promptsPath != "" {
				p, err := dialogue.LoadPrompts(promptsPath)
				if err != nil {
					return err
				}
				prompts = p
			}
			dests, err := routing.ParseDestinations(targets)
			if err != nil {
				return err
			}
			engine := ivr.NewEngine(session.NewMemoryStore(), ivr.Options{
				Machine:  dialogue.NewMachine(prompts),
				Transfer: routing.NewAgentRouter(dests, nil),
			})
			if callID == "" {
				callID = "SIM-" + uuid.NewString()
			}
			return runChat(cmd.Context(), engine, callID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&callID, "call-id", "", "Call identifier (default: random)")
	cmd.Flags().StringVar(&promptsPath, "prompts", "", "Path to a YAML prompt catalog")
	cmd.Flags().StringVar(&targets, "agents", ivr.DefaultTransferTarget, "Agent transfer targets, target[=weight],...")
	return cmd
}

// runChat speaks the greeting, then feeds each input line to the engine until
// the call terminates, transfers, or input ends.
func runChat(ctx context.Context, engine *ivr.Engine, callID string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintf(out, "IVR: %s\n", engine.Greeting())

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		res, err := engine.HandleTurn(ctx, ivr.TurnInput{CallID: callID, RawText: sc.Text()})
		if err != nil {
			fmt.Fprintf(out, "IVR: %s\n", engine.Apology())
			if errors.Is(err, ivr.ErrInvalidCallIdentifier) {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "IVR: %s\n", res.Utterance)
		switch {
		case res.TransferTarget != "":
			fmt.Fprintf(out, "[transferring to %s]\n", res.TransferTarget)
			return engine.EndCall(ctx, callID)
		case res.Terminate:
			fmt.Fprintln(out, "[call ended]")
			return engine.EndCall(ctx, callID)
		}
	}
	fmt.Fprintln(out)
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "[caller hung up]")
	return engine.EndCall(ctx, callID)
}

func buildTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API access token from the server's JWT_* configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Auth.AccessTokenTTL = ttl
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := m.IssueAccess(time.Now(), userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Operator user id")
	cmd.Flags().StringVar(&role, "role", rbac.RoleOperator, "operator, supervisor or super_admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_ACCESS_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
