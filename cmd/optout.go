package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
)

var (
	optOutScope  string
	optOutReason string
)

var optOutCmd = &cobra.Command{
	Use:   "optout",
	Short: "Manage the contact-suppression registry",
}

func parseScope(s string) (model.OptOutScope, error) {
	switch model.OptOutScope(s) {
	case model.OptOutDomain, model.OptOutEmail, model.OptOutPhone:
		return model.OptOutScope(s), nil
	default:
		return "", eris.Errorf("invalid scope %q: must be domain, email, or phone", s)
	}
}

var optOutAddCmd = &cobra.Command{
	Use:   "add <value>",
	Short: "Suppress contact discovery for a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		scope, err := parseScope(optOutScope)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entry := &model.OptOutEntry{
			TenantID: cfg.Tenant,
			Scope:    scope,
			Value:    args[0],
			Reason:   optOutReason,
		}
		if err := st.AddOptOut(ctx, entry); err != nil {
			return err
		}
		fmt.Printf("opted out %s %q\n", scope, args[0])
		return nil
	},
}

var optOutRemoveCmd = &cobra.Command{
	Use:   "remove <value>",
	Short: "Remove a suppression entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		scope, err := parseScope(optOutScope)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.RemoveOptOut(ctx, cfg.Tenant, scope, args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s %q\n", scope, args[0])
		return nil
	},
}

var optOutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppression entries for the current tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListOptOuts(ctx, cfg.Tenant)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no opt-out entries")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\t%s\n", e.Scope, e.Value, e.Reason, e.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	optOutAddCmd.Flags().StringVar(&optOutScope, "scope", "domain", "scope: domain, email, or phone")
	optOutAddCmd.Flags().StringVar(&optOutReason, "reason", "", "why this value is suppressed")
	optOutRemoveCmd.Flags().StringVar(&optOutScope, "scope", "domain", "scope: domain, email, or phone")

	optOutCmd.AddCommand(optOutAddCmd)
	optOutCmd.AddCommand(optOutRemoveCmd)
	optOutCmd.AddCommand(optOutListCmd)
	rootCmd.AddCommand(optOutCmd)
}
