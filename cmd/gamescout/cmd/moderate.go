package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/store"
)

func newModerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moderate <id> <allow|deny|none>",
		Short: "Set the moderation override for a game",
		Long: `Set a manual moderation override for one catalog record.

  allow  always keep the game, even when filters would remove it
  deny   never show the game
  none   clear the override

Overrides apply to catalog and provider results alike and take effect on
the next search.`,
		Example: `  gamescout moderate 1942 deny
  gamescout moderate 7346 allow
  gamescout moderate 1942 none`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModerate(cmd.Context(), cmd, args[0], args[1])
		},
	}
	return cmd
}

func runModerate(ctx context.Context, cmd *cobra.Command, id, label string) error {
	flag, ok := store.ParseFlag(label)
	if !ok {
		return gserrors.InputError(fmt.Sprintf("unknown moderation flag %q", label), nil).
			WithSuggestion("Use one of: allow, deny, none")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	if err := stores.Overrides.SetFlag(ctx, id, flag); err != nil {
		return err
	}
	slog.Info("moderation_flag_set", slog.String("id", id), slog.String("flag", string(flag)))

	out := output.New(cmd.OutOrStdout())
	if flag == store.FlagNone {
		out.Successf("Cleared override for %s", id)
		return nil
	}
	out.Successf("%s is now %s", id, flag)
	return nil
}
