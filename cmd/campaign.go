package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/config"
)

var campaignFile string

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage campaign definitions",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign from a YAML definition file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cc, err := config.LoadCampaignFile(campaignFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaign, err := st.CreateCampaign(ctx, cfg.Tenant, cc.Name, *cc)
		if err != nil {
			return err
		}

		fmt.Printf("created campaign %q (id %d): %d regions × %d terms\n",
			campaign.Name, campaign.ID, len(cc.Regions), len(cc.SearchTerms()))
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns for the current tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaigns, err := st.ListCampaigns(ctx, cfg.Tenant)
		if err != nil {
			return err
		}
		if len(campaigns) == 0 {
			fmt.Println("no campaigns")
			return nil
		}
		for _, c := range campaigns {
			fmt.Printf("%d\t%s\t%d regions, %d terms\t%s\n",
				c.ID, c.Name, len(c.Config.Regions), len(c.Config.SearchTerms()),
				c.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	campaignCreateCmd.Flags().StringVarP(&campaignFile, "file", "f", "", "campaign YAML file (required)")
	_ = campaignCreateCmd.MarkFlagRequired("file")

	campaignCmd.AddCommand(campaignCreateCmd)
	campaignCmd.AddCommand(campaignListCmd)
	rootCmd.AddCommand(campaignCmd)
}
