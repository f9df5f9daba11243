// ABOUTME: Version information for stretchaudio
// ABOUTME: Product identity printed by the CLI
package version

const (
	Version      = "0.1.0"
	Product      = "stretchaudio"
	Manufacturer = "Resonate"
)
