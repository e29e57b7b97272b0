package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		guildID     int64
		username    string
		displayName string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up a guild and create its first admin operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if guildID <= 0 {
				return errors.New("--guild is required")
			}
			ctx := cmd.Context()
			database, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			now := a.clock().Now()
			if _, err := store.EnsureGuild(ctx, database, guildID, now); err != nil {
				return err
			}

			password, err := generatePassword(16)
			if err != nil {
				return fmt.Errorf("generating password: %w", err)
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if _, err := store.CreateOperator(ctx, database, guildID, username, displayName, hash, model.RoleAdmin, now); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("operator %q already exists", username)
				}
				return err
			}

			printInitResult(cmd.OutOrStdout(), a.cfg.Database.Path, guildID, username, password)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&guildID, "guild", "g", 0, "guild id to initialize")
	cmd.Flags().StringVarP(&username, "user", "u", "admin", "admin username")
	cmd.Flags().StringVar(&displayName, "display-name", "", "admin display name")
	return cmd
}

func printInitResult(w io.Writer, dbPath string, guildID int64, username, password string) {
	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "Guild %d initialized.\n", guildID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
