// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). The core services depend only on these
// interfaces, never on concrete adapters, so every collaborator can be
// replaced with a test double.
package driven
