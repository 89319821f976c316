// Package records declares the record types served by the application and
// registers their column bindings with the core registry.
// Import this package to ensure all types are registered.
package records

// Each file registers its group from init().
