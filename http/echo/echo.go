// Package echo mounts the payment gateway on an echo server.
package echo

import (
	"github.com/labstack/echo/v4"

	pfhttp "github.com/proxyfox/proxyfox/http"
)

const (
	ProxyRoute        = "/proxy/:resourceId/:action"
	PaymentCheckRoute = "/payment-check/:resourceId/:action"
)

// Register mounts the proxy on every method and the payment check on GET.
func Register(e *echo.Echo, gateway *pfhttp.Gateway) {
	e.Any(ProxyRoute, ProxyHandler(gateway))
	e.GET(PaymentCheckRoute, PaymentCheckHandler(gateway))
}

// ProxyHandler adapts Gateway.Handle to echo. The gateway writes its own
// responses, so the handler never returns an error.
func ProxyHandler(gateway *pfhttp.Gateway) echo.HandlerFunc {
	return func(c echo.Context) error {
		gateway.Handle(c.Response(), c.Request(), c.Param("resourceId"), c.Param("action"))
		return nil
	}
}

// PaymentCheckHandler adapts Gateway.HandlePaymentCheck to echo.
func PaymentCheckHandler(gateway *pfhttp.Gateway) echo.HandlerFunc {
	return func(c echo.Context) error {
		gateway.HandlePaymentCheck(c.Response(), c.Request(), c.Param("resourceId"), c.Param("action"))
		return nil
	}
}
