package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
	"github.com/harunnryd/yakusoku/internal/negotiation"

	"github.com/spf13/cobra"
)

var negotiateCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Run an interactive negotiation",
	Long:  `Opens a negotiation conversation on stdin/stdout and persists the resulting agreement. Type /cancel to walk away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		subject, _ := cmd.Flags().GetString("subject")
		elapsed, _ := cmd.Flags().GetDuration("elapsed")

		store, err := agreement.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open agreement store: %w", err)
		}

		router, err := buildDialogueRouter(cfg)
		if err != nil {
			return err
		}

		policy, err := buildPolicy(cfg)
		if err != nil {
			return err
		}

		psr, err := buildParser(cfg)
		if err != nil {
			return err
		}

		requestTimeout, retryBackoff, err := dialogueTimeouts(cfg)
		if err != nil {
			return err
		}

		mem, err := buildMemory(cfg)
		if err != nil {
			slog.Warn("Negotiation memory unavailable", "error", err)
		}

		manager := negotiation.NewManager(router, store, policy, psr, clock.System{}, negotiation.ManagerConfig{
			RequestTimeout: requestTimeout,
			RetryBackoff:   retryBackoff,
			Memory:         mem,
		})

		evt := negotiation.NewEvent(category, subject, elapsed, time.Now())

		opening, err := manager.Start(cmd.Context(), evt)
		if err != nil {
			return fmt.Errorf("start negotiation: %w", err)
		}
		fmt.Printf("yakusoku> %s\n", opening)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("you> ")
			if !scanner.Scan() {
				if err := manager.Cancel(); err == nil {
					fmt.Println("yakusoku> Conversation cancelled.")
				}
				return scanner.Err()
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/cancel" || line == "/quit" {
				if err := manager.Cancel(); err != nil {
					return err
				}
				fmt.Println("yakusoku> Alright, no deal this time.")
				return nil
			}

			outcome, err := manager.ProcessReply(cmd.Context(), line)
			if err != nil {
				if errors.Is(err, yakusokuErrors.ErrNegotiationFailed) {
					fmt.Println("yakusoku> Sorry, I'm having trouble responding. Say that again?")
					continue
				}
				return err
			}

			fmt.Printf("yakusoku> %s\n", outcome.Reply)
			if outcome.Done {
				fmt.Printf("Agreement %s saved, expires at %s.\n",
					outcome.Agreement.ID,
					outcome.Agreement.ExpiresAt.Format("15:04:05"))
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(negotiateCmd)
	negotiateCmd.Flags().StringP("category", "c", "general", "behavior category being negotiated")
	negotiateCmd.Flags().StringP("subject", "s", "", "subject key (empty means general activity)")
	negotiateCmd.Flags().DurationP("elapsed", "e", 0, "how long the behavior has been going on")
}
