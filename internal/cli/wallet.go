package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/tabletop-bank/internal/factory"
	"github.com/mcoot/tabletop-bank/internal/services/wallet"
	redisstorage "github.com/mcoot/tabletop-bank/internal/storage/redis"
)

func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Player device commands (local state)",
	}

	cmd.AddCommand(newWalletRegisterCmd())
	cmd.AddCommand(newWalletTransferCmd("pay", "Show a code paying money to the bank", -1))
	cmd.AddCommand(newWalletTransferCmd("receive", "Show a code receiving money from the bank", 1))
	cmd.AddCommand(newWalletUndoCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletHistoryCmd())
	cmd.AddCommand(newWalletRecoverCmd())
	cmd.AddCommand(newWalletResetCmd())

	return cmd
}

// withWallet opens the local wallet store, loads the device state and runs fn
func withWallet(cmd *cobra.Command, fn func(ctx context.Context, w *wallet.Service) error) error {
	appCfg := factory.Config{StorageType: cfg.Store}
	switch cfg.Store {
	case factory.StorageTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
			return err
		}
		appCfg.SQLitePath = cfg.DBPath
	case factory.StorageTypeRedis:
		rc := redisstorage.DefaultConfig()
		rc.URL = cfg.RedisURL
		appCfg.RedisConfig = &rc
	}
	if cfg.Verbose {
		appCfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	app, err := factory.New(appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Wallet.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, app.Wallet)
}

func profileView(w *wallet.Service) (WalletProfile, error) {
	p, err := w.Profile()
	if err != nil {
		return WalletProfile{}, err
	}
	return WalletProfile{
		ID:             string(p.ID),
		Name:           p.Name,
		Color:          p.Color,
		InitialBalance: p.InitialBalance,
		NextSeq:        w.State().CurrentSeq,
	}, nil
}

func newWalletRegisterCmd() *cobra.Command {
	var name, color string
	var balance int64
	var noQR bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this device and show the registration code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				_, code, err := w.Register(ctx, name, color, balance)
				if err != nil {
					return err
				}
				view, err := profileView(w)
				if err != nil {
					return err
				}

				out := newOutput(cmd)
				out.Print(view)
				out.PrintCode("Show this code to the bank", code, !noQR)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&color, "color", "", "Player color")
	cmd.Flags().Int64Var(&balance, "balance", 1500, "Initial balance")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not draw a QR code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newWalletTransferCmd(use, short string, sign int64) *cobra.Command {
	var yes, noQR bool

	cmd := &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount < 0 {
				return fmt.Errorf("amount must be a non-negative integer")
			}

			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				r, code, err := w.BeginTransaction(ctx, sign*amount)
				if err != nil {
					return err
				}
				return settle(ctx, cmd, w, r, code, yes, noQR)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Commit without asking whether the bank scanned the code")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not draw a QR code")

	return cmd
}

func newWalletUndoCmd() *cobra.Command {
	var yes, noQR bool

	cmd := &cobra.Command{
		Use:   "undo <seq>",
		Short: "Show a code reversing an earlier transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("seq must be an integer")
			}

			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				r, code, err := w.BeginUndo(ctx, target)
				if err != nil {
					return err
				}
				return settle(ctx, cmd, w, r, code, yes, noQR)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Commit without asking whether the bank scanned the code")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not draw a QR code")

	return cmd
}

// settle shows the reserved code and commits it once the user confirms the
// bank accepted it, or rolls it back otherwise
func settle(ctx context.Context, cmd *cobra.Command, w *wallet.Service, r *wallet.Reservation, code string, yes, noQR bool) error {
	out := newOutput(cmd)
	out.PrintCode(fmt.Sprintf("Show this code to the bank (seq %d)", r.Seq), code, !noQR)

	accepted := yes
	if !yes {
		var err error
		accepted, err = confirm(cmd, "Did the bank accept it?")
		if err != nil {
			w.Rollback(r)
			return err
		}
	}

	if !accepted {
		w.Rollback(r)
		out.PrintMessage(fmt.Sprintf("Rolled back seq %d", r.Seq))
		return nil
	}

	if err := w.Commit(ctx, r); err != nil {
		return err
	}
	out.PrintMessage(fmt.Sprintf("Committed seq %d", r.Seq))
	return nil
}

func newWalletShowCmd() *cobra.Command {
	var code, noQR bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show this device's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				view, err := profileView(w)
				if err != nil {
					return err
				}

				out := newOutput(cmd)
				out.Print(view)
				if code {
					text, err := w.RegistrationCode()
					if err != nil {
						return err
					}
					out.PrintCode("Registration code", text, !noQR)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&code, "code", false, "Also show the registration code")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not draw a QR code")

	return cmd
}

func newWalletHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show this device's committed payments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				entries := w.History()
				view := WalletHistory{Entries: make([]WalletEntry, 0, len(entries))}
				for _, e := range entries {
					view.Entries = append(view.Entries, WalletEntry{
						Seq:       e.Seq,
						Timestamp: e.Timestamp,
						Kind:      string(e.Kind),
						Amount:    e.Amount,
						TargetSeq: e.TargetSeq,
						IsUndone:  e.IsUndone,
					})
				}
				newOutput(cmd).Print(view)
				return nil
			})
		},
	}
}

func newWalletRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover <code|->",
		Short: "Restore this device from a bank recovery code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				if _, err := w.Recover(ctx, code); err != nil {
					return err
				}
				view, err := profileView(w)
				if err != nil {
					return err
				}
				newOutput(cmd).Print(view)
				return nil
			})
		},
	}
}

func newWalletResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget this device's profile and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd, "Forget this wallet?")
				if err != nil {
					return err
				}
				if !ok {
					newOutput(cmd).PrintMessage("Reset cancelled")
					return nil
				}
			}

			return withWallet(cmd, func(ctx context.Context, w *wallet.Service) error {
				if err := w.Reset(ctx); err != nil {
					return err
				}
				newOutput(cmd).PrintMessage("Wallet reset")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
