package services

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a service whose initialization depends,
// directly or transitively, on itself.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// ServiceNotFoundError is returned when no descriptor is registered under a name.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("no service registered under name: %s", e.Name)
}

// DuplicateServiceError is returned when a name is registered twice.
type DuplicateServiceError struct {
	Name string
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("service already registered: %s", e.Name)
}

// InvalidDescriptorError rejects a descriptor that cannot be registered.
type InvalidDescriptorError struct {
	Name   string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor %q: %s", e.Name, e.Reason)
}

// ServiceInitializationError wraps the failure of a service's construction or
// init hook. It is cached on the descriptor and returned to every later caller.
type ServiceInitializationError struct {
	Name string
	Err  error
}

func (e *ServiceInitializationError) Error() string {
	return fmt.Sprintf("initialization failed for service %s: %v", e.Name, e.Err)
}

func (e *ServiceInitializationError) Unwrap() error {
	return e.Err
}

// UnknownImplementationError is returned when the catalog has no factory for
// a descriptor's implementation identifier.
type UnknownImplementationError struct {
	Name           string
	Implementation string
}

func (e *UnknownImplementationError) Error() string {
	return fmt.Sprintf("no implementation %q bound for service %s", e.Implementation, e.Name)
}

// NilServiceError represents a factory that produced a nil service.
type NilServiceError struct {
	Name           string
	Implementation string
}

func (e *NilServiceError) Error() string {
	return fmt.Sprintf("implementation %q produced a nil service for %s", e.Implementation, e.Name)
}

// TypeMismatchError represents a type assertion failure in Resolve.
type TypeMismatchError struct {
	Name     string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for service %s: expected %s, got %s", e.Name, e.Expected, e.Got)
}

// ServiceDisposedError is returned by Get once a service is shutting down or
// has been disposed.
type ServiceDisposedError struct {
	Name string
}

func (e *ServiceDisposedError) Error() string {
	return fmt.Sprintf("service %s has been disposed", e.Name)
}

// ShutdownError represents a service teardown failure.
type ShutdownError struct {
	Name string
	Err  error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown failed for service %s: %v", e.Name, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// RegistryClosedError is returned by Register after Shutdown has started.
type RegistryClosedError struct {
	Name string
}

func (e *RegistryClosedError) Error() string {
	return fmt.Sprintf("registry is shut down, cannot register %s", e.Name)
}

// DuplicateImplementationError is returned when an identifier is bound twice
// in a Catalog.
type DuplicateImplementationError struct {
	Implementation string
}

func (e *DuplicateImplementationError) Error() string {
	return fmt.Sprintf("implementation already bound: %s", e.Implementation)
}

// NilFactoryError represents an attempt to bind a nil factory.
type NilFactoryError struct {
	Implementation string
}

func (e *NilFactoryError) Error() string {
	return fmt.Sprintf("nil factory provided for implementation: %q", e.Implementation)
}

// HookPanicError carries a panic recovered from a lifecycle hook.
type HookPanicError struct {
	Hook  string
	Value interface{}
}

func (e *HookPanicError) Error() string {
	return fmt.Sprintf("%s hook panicked: %v", e.Hook, e.Value)
}

// SettingError reports a setting whose value cannot be converted.
type SettingError struct {
	Key   string
	Value string
	Err   error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("invalid value %q for setting %s: %v", e.Value, e.Key, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}
