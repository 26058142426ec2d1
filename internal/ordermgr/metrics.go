package ordermgr

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed, by reason and success.",
	}, []string{"reason", "success"})

	ordersCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Orders cancelled, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersCancelled)
}
