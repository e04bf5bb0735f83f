// Package gin mounts the payment gateway on a gin router.
package gin

import (
	"github.com/gin-gonic/gin"

	pfhttp "github.com/proxyfox/proxyfox/http"
)

const (
	ProxyRoute        = "/proxy/:resourceId/:action"
	PaymentCheckRoute = "/payment-check/:resourceId/:action"
)

// Register mounts the proxy on every method and the payment check on GET.
func Register(router gin.IRoutes, gateway *pfhttp.Gateway) {
	router.Any(ProxyRoute, ProxyHandler(gateway))
	router.GET(PaymentCheckRoute, PaymentCheckHandler(gateway))
}

// ProxyHandler adapts Gateway.Handle to gin.
func ProxyHandler(gateway *pfhttp.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		gateway.Handle(c.Writer, c.Request, c.Param("resourceId"), c.Param("action"))
		c.Abort()
	}
}

// PaymentCheckHandler adapts Gateway.HandlePaymentCheck to gin.
func PaymentCheckHandler(gateway *pfhttp.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		gateway.HandlePaymentCheck(c.Writer, c.Request, c.Param("resourceId"), c.Param("action"))
		c.Abort()
	}
}
