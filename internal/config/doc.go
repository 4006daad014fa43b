// Package config provides centralized configuration management for the
// license administration client.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later sources
// overriding earlier ones:
//
//  1. Default values (Default)
//  2. A YAML file (explicit path, LICADMIN_CONFIG, or licenseadmin.yaml)
//  3. Environment variables (LICADMIN_*)
//
// # Environment Variables
//
// Nested sections map to underscore separated names:
//
//	LICADMIN_AUTHORITY_BASE_URL=https://licenses.example.com
//	LICADMIN_AUTHORITY_API_KEY=secret
//	LICADMIN_AUTHORITY_TIMEOUT=10s
//	LICADMIN_MAIL_PROVIDER=smtp
//	LICADMIN_BATCH_SEND_INTERVAL=2s
//	LICADMIN_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
package config
