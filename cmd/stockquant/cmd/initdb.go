package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/XavierD3728/stockquant/config"
	"github.com/XavierD3728/stockquant/internal/catalog"
	"github.com/XavierD3728/stockquant/internal/model"
	sqlitestore "github.com/XavierD3728/stockquant/internal/store/sqlite"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and seed the instrument catalog",
	Long: `Create the SQLite schema, seed the instrument catalog, and create
the default trading account with the configured starting balance.
Safe to run against an existing database; existing rows are kept.`,
	RunE: runInitDB,
}

var initdbAccount string

func init() {
	rootCmd.AddCommand(initdbCmd)
	initdbCmd.Flags().StringVar(&initdbAccount, "account", "default", "account to create")
}

func runInitDB(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	ctx := context.Background()

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	for _, ins := range catalog.Instruments(entries) {
		if err := store.UpsertInstrument(ctx, ins); err != nil {
			return err
		}
	}
	fmt.Printf("seeded %d instruments\n", len(entries))

	accounts, err := store.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if acc.ID == initdbAccount {
			fmt.Printf("account %s already exists (balance %s)\n", acc.ID, acc.Balance)
			return nil
		}
	}

	acc := model.Account{ID: initdbAccount, Balance: cfg.InitialBalance, CreatedAt: time.Now()}
	if err := store.InsertAccount(ctx, acc); err != nil {
		return err
	}
	fmt.Printf("created account %s with balance %s\n", acc.ID, acc.Balance)
	return nil
}
