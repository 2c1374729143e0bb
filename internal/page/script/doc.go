// Package script runs JavaScript against the page API.
//
// Scripts see a global SprintManagementExtension object with the version,
// tracker, docstore and proxy operations and ping. Calls block until the
// response envelope arrives; failures are thrown as JavaScript errors.
// Async functions work because every call returns a plain value that can be
// awaited. A script whose completion value is a promise yields the settled
// result.
package script
