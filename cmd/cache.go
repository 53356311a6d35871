package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/cache"
	"github.com/sells-group/lead-consensus/internal/model"
)

var (
	showLead        model.Lead
	showFingerprint string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored, live and expired entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c cache.Cache) error {
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), "json", stats)
		})
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c cache.Cache) error {
			n, err := c.Purge(cmd.Context())
			if err != nil {
				return err
			}
			zap.L().Info("cache purged", zap.Int64("removed", n))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
			return err
		})
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached result for a lead",
	Long:  "Computes the lead fingerprint from --id, --name and --address (or takes --fingerprint) and prints the live cache entry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := showKey()
		if err != nil {
			return err
		}
		return withCache(cmd, func(c cache.Cache) error {
			entry, err := c.Get(cmd.Context(), fp)
			if err != nil {
				return err
			}
			if entry == nil {
				return eris.Errorf("cache: no live entry for fingerprint %s", fp)
			}
			var payload any
			if err := json.Unmarshal(entry.Payload, &payload); err != nil {
				return eris.Wrap(err, "cache: decode payload")
			}
			return writeResult(cmd.OutOrStdout(), "json", map[string]any{
				"fingerprint": entry.Fingerprint,
				"created_at":  entry.CreatedAt,
				"expires_at":  entry.ExpiresAt(),
				"payload":     payload,
			})
		})
	},
}

// showKey resolves the fingerprint named by the show flags.
func showKey() (string, error) {
	if showFingerprint != "" {
		return showFingerprint, nil
	}
	if err := showLead.Validate(); err != nil {
		return "", eris.Wrap(err, "cache show: --fingerprint or a valid --id/--name/--address is required")
	}
	return showLead.Fingerprint(), nil
}

// withCache opens the configured backend for the duration of fn.
func withCache(cmd *cobra.Command, fn func(cache.Cache) error) error {
	if err := cfg.Validate("cache"); err != nil {
		return err
	}
	c, err := openCache(cmd.Context(), cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck
	return fn(c)
}

func init() {
	cacheShowCmd.Flags().StringVar(&showLead.ID, "id", "", "lead identifier")
	cacheShowCmd.Flags().StringVar(&showLead.Name, "name", "", "lead name")
	cacheShowCmd.Flags().StringVar(&showLead.Address, "address", "", "lead street address")
	cacheShowCmd.Flags().StringVar(&showFingerprint, "fingerprint", "", "fingerprint to look up directly")

	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd, cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}
