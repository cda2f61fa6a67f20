// Package config holds the daemon configuration and the ways it is loaded:
// defaults, a YAML file, a .env overlay and PAGETRAIL_* environment
// variables, with command line flags applied last by the caller.
package config
