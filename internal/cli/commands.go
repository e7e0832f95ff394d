package cli

import (
	"github.com/spf13/cobra"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/provider"
)

func (a *App) awsCommand() *cobra.Command {
	var (
		opts      Options
		accountID string
		region    string
	)

	cmd := &cobra.Command{
		Use:   "aws",
		Short: "Fetch costs from AWS Cost Explorer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), command{
				provider: provider.ProviderAWS,
				vendor:   "AWS",
				opts:     opts,
				configure: func(cfg *config.Config) {
					if cmd.Flags().Changed("region") || cfg.AWS.Region == "" {
						cfg.AWS.Region = region
					}
					if accountID != "" {
						cfg.AWS.AccountID = accountID
					}
				},
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "AWS account ID the credentials must belong to")
	cmd.Flags().StringVar(&region, "region", config.DefaultAWSRegion, "AWS region")
	addCommonFlags(cmd, &opts, true, provider.DimensionService)
	return cmd
}

func (a *App) gcpCommand() *cobra.Command {
	var (
		opts    Options
		project string
		dataset string
	)

	cmd := &cobra.Command{
		Use:   "gcp",
		Short: "Fetch costs from the GCP BigQuery billing export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), command{
				provider: provider.ProviderGCP,
				vendor:   "GCP",
				opts:     opts,
				configure: func(cfg *config.Config) {
					cfg.GCP.ProjectID = project
					cfg.GCP.Dataset = dataset
				},
			})
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "GCP project ID")
	cmd.Flags().StringVar(&dataset, "dataset", "", "BigQuery dataset containing the billing export")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("dataset")
	addCommonFlags(cmd, &opts, true, provider.DimensionService)
	return cmd
}

func (a *App) azureCommand() *cobra.Command {
	var (
		opts         Options
		subscription string
	)

	cmd := &cobra.Command{
		Use:   "azure",
		Short: "Fetch costs from Azure Cost Management",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), command{
				provider: provider.ProviderAzure,
				vendor:   "Azure",
				opts:     opts,
				configure: func(cfg *config.Config) {
					cfg.Azure.SubscriptionID = subscription
				},
			})
		},
	}

	cmd.Flags().StringVarP(&subscription, "subscription", "s", "", "Azure subscription ID")
	_ = cmd.MarkFlagRequired("subscription")
	addCommonFlags(cmd, &opts, false, "")
	return cmd
}

func (a *App) datadogCommand() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "datadog",
		Short: "Fetch usage from the Datadog Usage Metering API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), command{
				provider:    provider.ProviderDatadog,
				vendor:      "Datadog",
				opts:        opts,
				emptyNotice: "No usage data found for the specified period.",
			})
		},
	}

	addCommonFlags(cmd, &opts, true, "")
	cmd.Flags().Lookup("group-by").Usage = "Group usage attribution by tag dimension (" + joinDimensions() +
		"); without it the monthly usage summary is reported"
	return cmd
}
