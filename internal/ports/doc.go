// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [ReportSpool]: Scans and prunes finalized crash report sets
//   - [CrashCollector]: Finalizes raw crash artifacts into report sets
//   - [ReportSender]: Ships report sets to the remote service
//   - [UploadLedger]: Records send activity for rate limiting and status
//   - [StateRepository]: Persists and loads agent state
//   - [ConsentStore]: Answers the consent question and yields the client id
//   - [ResourceGate]: Defers sending under resource pressure
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (file system, HTTP, sqlite, zerolog, etc.).
//
// This separation enables:
//   - Testing application logic with mock implementations
//   - Swapping infrastructure without changing business logic
//   - Clear boundaries and dependency direction
package ports
