package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/auth"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
	"github.com/tbourn/go-storefront-backend/internal/services"
	"github.com/tbourn/go-storefront-backend/internal/sysutil"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert store items, crates and crate contents from a catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			file = sysutil.FirstNonEmpty(file, cfg.CatalogPath)
			if file == "" {
				return errors.New("seed: --file or CATALOG_PATH is required")
			}
			if err := migrate(cmd.Context(), db); err != nil {
				return err
			}
			_, err = seedCatalog(cmd.Context(), db, file, cfg.Pity)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML (defaults to CATALOG_PATH)")
	return cmd
}

func newUserCmd() *cobra.Command {
	var (
		id, username, email string
		gameUserNo, balance int64
	)
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create a user or update an existing user's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(username) == "" {
				return errors.New("user: --username is required")
			}
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := migrate(cmd.Context(), db); err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			u := domain.User{ID: id, Username: username, Email: email, GameUserNo: gameUserNo, AccountBalance: balance}
			err = db.WithContext(cmd.Context()).Transaction(func(tx *gorm.DB) error {
				var existing domain.User
				switch err := tx.Where("username = ?", username).Take(&existing).Error; {
				case errors.Is(err, gorm.ErrRecordNotFound):
					return tx.Create(&u).Error
				case err != nil:
					return err
				}
				u = existing
				return tx.Model(&domain.User{}).Where("id = ?", existing.ID).
					Updates(map[string]any{"account_balance": balance, "game_user_no": gameUserNo}).Error
			})
			if err != nil {
				return fmt.Errorf("user: %w", err)
			}
			log.Info().Str("user_id", u.ID).Str("username", username).Int64("balance", balance).Msg("user saved")
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "user id (random when empty)")
	f.StringVar(&username, "username", "", "unique user name")
	f.StringVar(&email, "email", "", "contact email")
	f.Int64Var(&gameUserNo, "game-user-no", 0, "game account number used for deliveries")
	f.Int64Var(&balance, "balance", 0, "account balance in credits")
	return cmd
}

func newSessionCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Issue a session for a user and print the cookie value (and a bearer token when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("session: --user is required")
			}
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if ttl <= 0 {
				ttl = cfg.Session.TTL
			}
			if _, err := repo.GetUser(cmd.Context(), db, userID); err != nil {
				return fmt.Errorf("session: user %q: %w", userID, err)
			}
			s, err := repo.CreateSession(cmd.Context(), db, userID, ttl)
			if err != nil {
				return fmt.Errorf("session: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s=%s\n", cfg.Session.CookieName, s.ID)

			if cfg.Session.JWTSecret != "" {
				v := auth.NewValidator(db, auth.Options{
					CookieName: cfg.Session.CookieName,
					JWTSecret:  []byte(cfg.Session.JWTSecret),
					JWTIssuer:  cfg.Session.JWTIssuer,
				})
				tok, err := v.IssueToken(userID, ttl)
				if err != nil {
					return fmt.Errorf("session: token: %w", err)
				}
				fmt.Fprintf(out, "Authorization: Bearer %s\n", tok)
			}
			log.Info().Str("user_id", userID).Time("expires_at", s.ExpiresAt).Msg("session issued")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "session lifetime (defaults to SESSION_TTL)")
	return cmd
}

// newRefundCmd credits an unopened crate purchase back to its owner. Support
// uses it for purchases whose compensating refund failed.
func newRefundCmd() *cobra.Command {
	var (
		userID, attemptID string
		purchaseID        int64
	)
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund an unopened crate purchase (repeat calls never credit twice)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || purchaseID <= 0 {
				return errors.New("refund: --user and --purchase are required")
			}
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)

			svc := services.NewCrateService(db)
			svc.RefundTimeout = cfg.RefundTimeout
			ref, err := svc.Refund(cmd.Context(), userID, purchaseID, sysutil.FirstNonEmpty(attemptID, "cli-"+uuid.NewString()))
			if err != nil {
				return fmt.Errorf("refund: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refund %d: %d credits to %s for purchase %d\n", ref.ID, ref.Amount, ref.UserID, ref.PurchaseID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&userID, "user", "", "purchase owner")
	f.Int64Var(&purchaseID, "purchase", 0, "crate purchase id")
	f.StringVar(&attemptID, "attempt", "", "attempt id recorded on the refund (random when empty)")
	return cmd
}
