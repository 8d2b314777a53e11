package migrations

import "embed"

// One subdirectory per database dialect; the migration runner picks the
// right one at startup.
//
//go:embed postgres mysql sqllite3
var FS embed.FS
