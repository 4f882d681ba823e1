// Package metrics defines and registers all custom Prometheus metrics for the
// storefront API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation; HTTP request metrics come from the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// ── Cart metrics ──────────────────────────────────────────────────────────────

// CartOperationsTotal counts cart operations by outcome.
// Labels:
//   - operation: add, update, remove, clear, list, get
//   - result: ok, unauthorized, invalid, not_found, error
var CartOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_operations_total",
		Help:      "Total number of cart operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// CartAddOutcomeTotal counts successful add-to-cart calls.
// Label:
//   - outcome: "created" (new line), "merged" (quantity accumulated) or
//     "replayed" (idempotency key matched an earlier request)
var CartAddOutcomeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_add_outcome_total",
		Help:      "Total number of successful add-to-cart calls, by outcome.",
	},
	[]string{"outcome"},
)

// CartConflictRetriesTotal counts upserts retried after losing the race for the
// first insert of a (user, product) line.
var CartConflictRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_conflict_retries_total",
		Help:      "Total number of cart upserts retried after a unique index conflict.",
	},
)

// ── Catalog metrics ───────────────────────────────────────────────────────────

// CatalogCacheTotal counts product cache lookups.
// Label:
//   - result: "hit", "miss" or "error"
var CatalogCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_cache_total",
		Help:      "Total number of product cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// ProductsCreatedTotal counts catalog entries created, by category.
var ProductsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_created_total",
		Help:      "Total number of products created, by category.",
	},
	[]string{"category"},
)
