// Package hook runs ordered sets of lifecycle hooks around commands, specs and
// spec hooks.
//
// Phases:
//   - beforeCommand: before a top-level command, with (name, args)
//   - afterCommand: after it, with (name, args, result) or (name, args, nil, err)
//   - onCommandException: after afterCommand when the command failed, with (name, args, err)
//   - beforeHook / afterHook: around every spec hook body, without arguments
//
// Hook failure handling:
//   - every hook of a set runs, failures never short-circuit the set
//   - a failing hook (error, panic or rejected Future) is logged as a HookError
//     and its slot in the joined result holds the error itself
//   - the executor never returns an error, so ancillary hooks can't abort the
//     operation they surround
package hook
