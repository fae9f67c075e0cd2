// Package defaults provides embedded copies of the default
// configuration, persona and profile files for the krish init
// subcommand.
package defaults

import _ "embed"

//go:embed config.example.yaml
var ConfigYAML []byte

//go:embed SOUL.example.md
var SoulMD []byte

//go:embed USER.example.md
var UserMD []byte

//go:embed MEMORY.example.md
var MemoryMD []byte
