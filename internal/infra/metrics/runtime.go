package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo, catalogCacheTotal, dbPoolConnections)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "course_payments_build_info",
			Help: "Always 1; labels carry the running build and configured gateway.",
		},
		[]string{"version", "commit", "gateway"},
	)

	catalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Catalog price lookups served from Redis versus Postgres.",
		},
		[]string{"result"}, // hit|miss|error
	)

	dbPoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total|idle|acquired
	)
)

func SetBuildInfo(version, commit, gateway string) {
	buildInfo.WithLabelValues(version, commit, norm(gateway)).Set(1)
}

func IncCatalogCache(result string) {
	catalogCacheTotal.WithLabelValues(norm(result)).Inc()
}

func SetDBPoolStats(total, idle, acquired int32) {
	dbPoolConnections.WithLabelValues("total").Set(float64(total))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("acquired").Set(float64(acquired))
}
