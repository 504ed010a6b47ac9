// Package migrations bundles the SQL schema files so binaries can migrate
// without the source tree at hand.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
