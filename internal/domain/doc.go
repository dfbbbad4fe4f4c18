// Package domain contains the core domain entities and value objects for crashship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Meta]: The key=value metadata record describing one captured crash
//   - [Report]: A finalized report set (meta + payload) ready to be shipped
//   - [State]: Persistent agent progress for restart continuity
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
