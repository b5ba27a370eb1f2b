// Package appfs embeds the files shipped along with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
