// Package assets embeds the bundled plugins (sitecore, umbraco,
// optimizely) and the marketplace manifest so a single binary ships with a
// working rule set. External plugin directories can override any bundle by
// name.
package assets

import "embed"

//go:embed marketplace.json plugins
var FS embed.FS
