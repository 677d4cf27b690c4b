// Package configs embeds the configuration templates shipped with gamescout.
//
// The templates are used by:
//   - `gamescout config init`, which writes UserConfigTemplate to
//     ~/.config/gamescout/config.yaml
//   - `gamescout config rules --example`, which prints RulesTemplate as a
//     starting point for a custom rules file
//
// Precedence is documented on config.Load.
package configs

import _ "embed"

// UserConfigTemplate is the commented user configuration written by
// `gamescout config init`. Every value shown is the built-in default.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// RulesTemplate is an example rules file. Top-level keys replace the
// matching built-in table; keys left out keep their defaults.
//
//go:embed rules.example.yaml
var RulesTemplate string
