// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (MESHNODE_ prefix)
//  3. YAML configuration file
//  4. Defaults already present in the target struct
//
// Environment names map to keys by splitting the section at the first
// underscore, so MESHNODE_NODE_JOIN_TIMEOUT sets node.join_timeout. A double
// underscore marks every further level: MESHNODE_STORAGE__BADGER__GC_INTERVAL
// sets storage.badger.gc_interval.
//
// Watcher reports writes to the configuration file so callers can apply
// settings that are safe to change at runtime.
package confloader
