package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tenkdelta/tenkdelta/internal/config"
	"github.com/tenkdelta/tenkdelta/internal/ledger"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/storage"
)

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage accounts and token balances",
	}

	cmd.AddCommand(tokensCreateAccountCmd())
	cmd.AddCommand(tokensGrantCmd())
	cmd.AddCommand(tokensBalanceCmd())
	cmd.AddCommand(tokensHistoryCmd())
	return cmd
}

func tokensCreateAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			tokens, _ := cmd.Flags().GetInt("tokens")

			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account := &model.Account{
				ID:              uuid.New().String(),
				Email:           email,
				TokensRemaining: tokens,
			}
			if err := store.CreateAccount(cmd.Context(), account); err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			slog.Info("Account created", "account_id", account.ID, "email", email, "tokens", tokens)
			return nil
		},
	}

	cmd.Flags().String("email", "", "account email")
	cmd.Flags().Int("tokens", 0, "starting token grant")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func tokensGrantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant <account-id> <amount>",
		Short: "Grant tokens to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount int
			if _, err := fmt.Sscanf(args[1], "%d", &amount); err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ldg := ledger.New(store)
			if err := ldg.Credit(cmd.Context(), args[0], amount, model.KindGrant, "Manual grant"); err != nil {
				return err
			}

			balance, err := ldg.Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slog.Info("Tokens granted", "account_id", args[0], "amount", amount, "balance", balance)
			return nil
		},
	}
	return cmd
}

func tokensBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show an account's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			balance, err := ledger.New(store).Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%d tokens\n", balance)
			return nil
		},
	}
}

func tokensHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <account-id>",
		Short: "Show an account's transaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transactions, err := ledger.New(store).History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, txn := range transactions {
				fmt.Printf("%s  %-8s  %+d  %s\n",
					txn.CreatedAt.Format("2006-01-02 15:04"),
					txn.Kind, txn.Amount, txn.Description)
			}
			return nil
		},
	}
}

func openStore() (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
