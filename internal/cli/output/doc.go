// Package output renders command results as a table, JSON or YAML.
//
// Values rendered as tables implement Tabular; other values fall back to
// JSON in table mode.
package output
