// Package runner adapts the spec and hook registration functions of a test
// framework so that their bodies run on fibers.
//
// Registration functions are kept in an explicit Registry. RunInFiberContext
// installs an adapted version next to the original:
//
//	reg := runner.NewRegistry()
//	reg.MustRegister("it", runner.Interface{Register: framework.It})
//	it, _ := runner.RunInFiberContext(reg, []string{"it"}, nil, nil, "it")
//	it.Call("loads the page", runner.Body(func(ctx context.Context) error {
//		...
//	}), 2)
//
// Spec bodies are retried up to their retry budget. Hook bodies are
// additionally surrounded by the beforeHook and afterHook sets, whose
// failures are only logged.
package runner
