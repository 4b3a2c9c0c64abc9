// Package command wraps the operations of an asynchronous API surface so that
// they can be called as blocking statements from a fiber.
//
// Every top-level call runs the beforeCommand hooks, the operation itself and
// the afterCommand hooks on an orchestration fiber; calls made from inside
// that scope (from hooks or from the operation) reach the operation directly.
// Successful results are augmented into chainable views, see package result.
//
// Custom commands are added with AddCommand and AddNamespacedCommand. A
// command registered as an AsyncFunc sees the raw futures of the commands it
// calls; a plain Func runs on its own fiber and can block on them.
package command
