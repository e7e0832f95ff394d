// Package azure provides the Azure Cost Management cost provider.
//
// The client authenticates with a service principal (tenant, client id and
// secret read by the config package) and runs a daily Usage query against a
// single subscription scope. Results are decoded into provider.CostRecord:
//   - UsageDate values (YYYYMMDD numbers) become YYYY-MM-DD dates
//   - the grouping dimension (ServiceName, ResourceLocation,
//     ResourceGroupName or Tags) becomes the record's service label
//   - amounts are reported in USD
//
// Column positions come from the response column names when present and
// fall back to the positional layout date, [dimension], cost.
//
// Example usage:
//
//	exec := retry.NewExecutor(log)
//	client, err := azure.NewClient(cfg.Azure, "sub-123", exec, log)
//	if err != nil {
//		return err
//	}
//
//	records, err := client.FetchCosts(ctx, provider.FetchParams{
//		StartDate: "2025-01-01",
//		EndDate:   "2025-01-31",
//		GroupBy:   provider.DimensionService,
//	})
package azure
