package middleware

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime"

	"github.com/labstack/echo/v4"
)

var (
	contextType = reflect.TypeOf((*echo.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// WrapHandler turns a typed handler into an echo.HandlerFunc. f is one of
//
//	func(echo.Context, Req) (Data, error)
//	func(echo.Context, Req) error
//
// where Req is a struct filled by BindAndValidate. Data is sent inside a
// success Response, unless it already is a *Response. Handlers that wrote
// the response themselves, e.g. a websocket upgrade, get nothing more.
// It panics on any other shape, so bad wiring fails at startup.
func WrapHandler(f any) echo.HandlerFunc {
	fn := reflect.ValueOf(f)
	if err := checkHandler(fn); err != nil {
		panic(err)
	}
	reqType := fn.Type().In(1)
	withData := fn.Type().NumOut() == 2

	return func(c echo.Context) error {
		req := reflect.New(reqType)
		if err := BindAndValidate(c, req.Interface()); err != nil {
			return err
		}

		out := fn.Call([]reflect.Value{reflect.ValueOf(c), req.Elem()})
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return err
		}
		if c.Response().Committed {
			return nil
		}

		var data any
		if withData {
			data = out[0].Interface()
		}
		return render(c, data)
	}
}

func render(c echo.Context, data any) error {
	if resp, ok := data.(*Response); ok && resp != nil {
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		return c.JSON(resp.Status, resp)
	}
	return c.JSON(http.StatusOK, &Response{Status: http.StatusOK, Success: true, Data: data})
}

func checkHandler(fn reflect.Value) error {
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("wrap handler: %T is not a function", fn.Interface())
	}
	name := runtime.FuncForPC(fn.Pointer()).Name()
	typ := fn.Type()

	switch {
	case typ.NumIn() != 2:
		return fmt.Errorf("wrap handler %s: want 2 arguments, got %d", name, typ.NumIn())
	case !typ.In(0).Implements(contextType):
		return fmt.Errorf("wrap handler %s: first argument must be echo.Context", name)
	case typ.In(1).Kind() != reflect.Struct:
		return fmt.Errorf("wrap handler %s: request must be a struct, got %s", name, typ.In(1).Kind())
	case typ.NumOut() < 1 || typ.NumOut() > 2:
		return fmt.Errorf("wrap handler %s: want 1 or 2 results, got %d", name, typ.NumOut())
	case typ.Out(typ.NumOut()-1) != errorType:
		return fmt.Errorf("wrap handler %s: last result must be error", name)
	}
	return nil
}
