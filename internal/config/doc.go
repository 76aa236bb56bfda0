// Package config provides configuration structures and utilities for
// threadtracker. It defines the process-level options (board, transport,
// output, history), the per-run tracker options that shape how search
// results are classified and rendered, and the YAML file that carries
// both along with per-user overrides.
package config
