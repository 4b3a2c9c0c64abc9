// Package result turns values returned by commands into chainable views.
//
// A map result becomes a *View that keeps every data field and additionally
// exposes the capabilities of the instance that produced it, so a caller can
// continue a chain from the returned data:
//
//	v := result.Augment(res, inst, nil).(*result.View)
//	v.Call(ctx, "getText")
//
// Element collections (a selector plus a list of element handles, or a bare
// list of handles) become one view per element. Every other value is
// returned untouched.
package result
