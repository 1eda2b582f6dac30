// Package fixtures provides the todo-list event and aggregate definitions
// shared by the storage engine and reconstruction tests.
package fixtures
