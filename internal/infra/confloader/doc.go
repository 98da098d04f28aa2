// Package confloader loads client configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (ARCLINK_SECTION_KEY)
//  3. Configuration file (YAML)
//  4. Defaults already present in the target struct
package confloader
