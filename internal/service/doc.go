// Package service contains the application services that sit between the
// HTTP handlers and the stores. Services enforce ownership rules and shape
// results; they never reach around the store's update contract.
package service
