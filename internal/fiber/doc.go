// Package fiber provides the suspendable units of execution that command and
// spec bodies run on.
//
// A fiber is a goroutine whose context carries a fiber identity. Code running
// on a fiber may block on a Future with Wait and resume exactly where it
// stopped once the producer settles it, while the rest of the process keeps
// servicing other pending work.
//
// Code that is not running on a fiber cannot block this way: Wait returns
// ErrCoroutineUnavailable so the caller can fall back to handing out the raw
// Future instead of failing.
//
// Basic usage:
//
//	fut := fiber.Go(ctx, func(ctx context.Context) (any, error) {
//	    v, err := someFuture.Wait(ctx) // blocks this fiber only
//	    if err != nil {
//	        return nil, err
//	    }
//	    return v, nil
//	})
//	v, err := fut.Await()
package fiber
