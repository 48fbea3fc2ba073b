package coio

import (
	"context"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
)

// Dispatch
// places op on the process-wide event loop group and returns a future
// resolved with the operation's result exactly once, plus a token the
// caller may use to cancel op while it is in flight.
//
// The operation and its buffer belong to the chosen loop until the future
// resolves; read the buffer back through op.Buffer afterwards. A canceled
// operation still resolves the future, with an error IsCanceled reports
// true for.
func Dispatch(ctx context.Context, op *aio.Operation, options ...async.Option) (future async.Future[aio.Result], token aio.CancelToken) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = rxp.With(ctx, Executors())
	promise, promiseErr := async.Make[aio.Result](ctx, options...)
	if promiseErr != nil {
		future = async.FailedImmediately[aio.Result](ctx, promiseErr)
		return
	}
	future = promise.Future()
	p, gErr := group()
	if gErr != nil {
		promise.Fail(gErr)
		return
	}
	event := p.Value().Next()
	token = event.CancelTokenFor(op)
	_, spawnErr := event.Spawn(func(tk *aio.Task) {
		tk.Submit(op, func(tk *aio.Task, res aio.Result) {
			if res.Err != nil {
				promise.Fail(res.Err)
				return
			}
			promise.Succeed(res)
		})
	})
	if spawnErr != nil {
		promise.Fail(spawnErr)
	}
	return
}

// DispatchAndWait
// is Dispatch plus an await.
func DispatchAndWait(ctx context.Context, op *aio.Operation) (n int, flags uint32, err error) {
	future, _ := Dispatch(ctx, op)
	res, awaitErr := async.AwaitableFuture[aio.Result](future).Await()
	if awaitErr != nil {
		err = awaitErr
		return
	}
	n = res.N
	flags = res.Flags
	return
}
