package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newBankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Bank server commands",
	}

	cmd.AddCommand(newBankScanCmd())
	cmd.AddCommand(newBankPlayersCmd())
	cmd.AddCommand(newBankHistoryCmd())
	cmd.AddCommand(newBankSyncCmd())
	cmd.AddCommand(newBankVerifyCmd())
	cmd.AddCommand(newBankResetCmd())
	cmd.AddCommand(newEventsCmd())

	return cmd
}

func newBankScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <code|->",
		Short: "Submit a scanned wallet code to the bank",
		Long: `Submit the text of a scanned wallet code. Pass "-" to read the code
from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var result Outcome
			if err := client.Post("/api/v1/bank/scan", map[string]string{"code": code}, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newBankPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players [id]",
		Short: "List players and balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd)

			if len(args) == 1 {
				var result Player
				if err := client.Get("/api/v1/bank/players/"+url.PathEscape(args[0]), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result PlayersResult
			if err := client.Get("/api/v1/bank/players", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}
}

func newBankHistoryCmd() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the ledger, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/bank/history"
			if player != "" {
				path += "?player=" + url.QueryEscape(player)
			}

			var result HistoryResult
			if err := client.Get(path, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "Only show one player's events")

	return cmd
}

func newBankSyncCmd() *cobra.Command {
	var limit int
	var noQR bool

	cmd := &cobra.Command{
		Use:   "sync <player-id>",
		Short: "Issue a recovery code for a player's device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/bank/players/" + url.PathEscape(args[0]) + "/sync"
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}

			var result SyncResult
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := newOutput(cmd)
			if cfg.Output == "json" {
				out.Print(result)
				return nil
			}
			out.PrintCode("Recovery code for the player's wallet", result.Code, !noQR)
			out.PrintMessage(fmt.Sprintf("Next seq %d, balance %d, %d history entries", result.NextSeq, result.Balance, result.History))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "History entries to include (server default when 0)")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not draw a QR code")

	return cmd
}

func newBankVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every balance against the ledger history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result VerifyResult
			if err := client.Get("/api/v1/bank/verify", &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			if !result.OK {
				return fmt.Errorf("ledger verification failed")
			}
			return nil
		},
	}
}

func newBankResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe every player and all history on the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd, "Wipe the whole ledger?")
				if err != nil {
					return err
				}
				if !ok {
					newOutput(cmd).PrintMessage("Reset cancelled")
					return nil
				}
			}

			if err := client.PostAdmin("/api/v1/bank/reset", nil, nil); err != nil {
				return err
			}

			newOutput(cmd).PrintMessage("Ledger reset")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// codeArg returns the code argument, reading it from r when it is "-"
func codeArg(r io.Reader, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	code := strings.TrimSpace(string(data))
	if code == "" {
		return "", fmt.Errorf("no code on standard input")
	}
	return code, nil
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, question string) (bool, error) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
