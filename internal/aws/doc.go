// Package aws implements the AWS Cost Explorer cost provider.
//
// Credentials come from the SDK default chain (environment, shared config,
// instance role). ValidateCredentials calls sts:GetCallerIdentity and, when
// an account ID was given, checks that the caller belongs to it.
//
// FetchCosts issues GetCostAndUsage with daily granularity and the
// UnblendedCost metric. Grouping dimensions map as:
//   - SERVICE: SERVICE
//   - ACCOUNT: LINKED_ACCOUNT
//   - REGION:  REGION
//   - TAG:     TAG
//   - anything else: SERVICE
//
// Pages are requested one at a time, each through the retry executor, and
// concatenated in order. Without grouping, each day yields one "Total" record.
package aws
