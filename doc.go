// This package is intended to help user compose middleware chains
// and edit them by name after they were built.

// To install composer:
// 	go get -u github.com/andriiyaremenko/composer

// How to use:
//
// Compose:
// import (
// 	"github.com/andriiyaremenko/composer"
// )
// type Request struct{ Log []string }
// type Response struct{ Status int }
//
// func main() {
// 	auth := composer.Named("auth", func(req *Request, res *Response, next composer.Next) {
// 		req.Log = append(req.Log, "auth")
// 		next(nil)
// 	})
// 	handle := composer.Named("handle", func(req *Request, res *Response, next composer.Next) {
// 		next(errors.New("boom"))
// 	})
// 	recover := composer.NamedTrap("recover", func(err error, req *Request, res *Response, next composer.Next) {
// 		res.Status = 500
// 		// next(nil) clears the error, next(err) passes it on
// 		next(nil)
// 	})
//
// 	p := composer.Compose[*Request, *Response](auth, handle, recover)
//
// 	// run chain, done is called exactly once
// 	p.Run(&Request{}, &Response{}, func(err error) {
// 		// handle error
// 		if err != nil {
// 			// ...
// 		}
// 	})
// }
//
// Edit:
// 	// entries are addressed by name, every matching entry is affected
// 	p.Before("handle", composer.Named("validate", validate)).
// 		After("auth", audit).
// 		Replace("recover", composer.NamedTrap("problem", problem)).
// 		Remove("audit").
// 		Push(last).
// 		Unshift(first)
//
// 	// independent copy
// 	c := p.Clone()
//
// Configure:
// 	loop := composer.NewEventLoop(ctx)
// 	p := composer.New[*Request, *Response](
// 		composer.WithScheduler(loop),
// 		composer.WithLogger(logger),
// 		composer.WithInstrumenter(composer.Logging[*Request, *Response](logger)),
// 	).Compose(auth, handle, recover)
//
// 	// or process-wide, captured by Pipelines composed afterwards
// 	restore := composer.SetDefaults(composer.WithScheduler(loop))
// 	defer restore()
package composer
