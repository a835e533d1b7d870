// Package domain contains the core business types for ragsync.
// These types have no dependencies on adapters or infrastructure.
package domain
