// Package config provides configuration management for omnicost.
//
// This package handles loading an optional YAML file, applying defaults,
// applying environment variable overrides and validating the result. Vendor
// credentials are read from the environment exactly once, here, and handed
// to the adapter constructors.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file (--config)
//  3. Default values (lowest priority)
//
// A .env file in the working directory is loaded into the environment first
// (see LoadDotEnv); variables already set are not overwritten.
//
// Supported environment variables:
//   - OMNICOST_LOG_LEVEL: Log level (debug, info, warn, error)
//   - OMNICOST_LOG_FORMAT: Log format (text, json)
//   - OMNICOST_MAX_RETRIES: Attempts per remote call (minimum: 1)
//   - OMNICOST_RETRY_DELAY_MS: Base linear backoff delay in milliseconds
//   - OMNICOST_API_TIMEOUT: Per-call timeout in seconds (0 disables)
//   - AWS_REGION / AWS_DEFAULT_REGION: AWS region
//   - AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET: Azure service principal
//   - DD_API_KEY or DATADOG_API_KEY, DD_APP_KEY or DATADOG_APP_KEY: Datadog keys
//   - DD_SITE: Datadog site (default datadoghq.com)
//
// Example configuration file (omnicost.yaml):
//
//	log_level: "info"
//	log_format: "text"
//	api_timeout: 0
//
//	retry:
//	  max_retries: 3
//	  retry_delay_ms: 1000
//
//	aws:
//	  region: "us-east-1"
//
//	datadog:
//	  site: "datadoghq.eu"
package config
