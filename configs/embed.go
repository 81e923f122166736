// Package configs embeds the configuration template written by
// `claimrag config init`.
//
// Precedence at load time (see internal/config Load):
//  1. Built-in defaults
//  2. User config (~/.config/claimrag/config.yaml)
//  3. Project config (.claimrag.yaml)
//  4. CLAIMRAG_* environment variables
package configs

import _ "embed"

// ConfigTemplate is a commented config listing every setting at its
// default value.
//
//go:embed config.example.yaml
var ConfigTemplate string
