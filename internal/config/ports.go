// Package config provides configuration management for mskql.
// This file centralizes default port constants.
package config

// DefaultWirePort is the Postgres wire-protocol listener's default port.
const DefaultWirePort = 5433

// DefaultAdminPort is the admin HTTP/WS surface's default port.
const DefaultAdminPort = 8089
