// Package assets embeds the files graphogm init writes into a project.
package assets

import _ "embed"

// ConfigTemplate is the commented graphogm.yml written by init.
//
//go:embed graphogm.yml
var ConfigTemplate []byte
