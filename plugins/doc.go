// Package plugins hosts plugin implementations as subpackages. It contains no
// runtime code; the architecture test alongside it keeps every plugin on the
// service core and the model, away from storage drivers and configuration.
package plugins
