package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

type callCostKey string

const (
	contextKeyCallCost callCostKey = "call_cost"
)

var (
	endpointCosts = make(map[string]int)
	costMutex     sync.RWMutex
)

// SetEndpointCost sets the call cost of a named route
func SetEndpointCost(routeName string, cost int) {
	costMutex.Lock()
	defer costMutex.Unlock()
	endpointCosts[routeName] = cost
}

// CallCostMiddleware sets call costs based on the matched route. It must be
// registered on the router so the route is known.
func CallCostMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := 1
		if route := mux.CurrentRoute(r); route != nil {
			costMutex.RLock()
			if routeCost, exists := endpointCosts[route.GetName()]; exists {
				cost = routeCost
			}
			costMutex.RUnlock()
		}

		// Store cost in request context for rate limiting middleware
		ctx := context.WithValue(r.Context(), contextKeyCallCost, cost)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCallCost extracts the call cost from request context, defaults to 1
func GetCallCost(r *http.Request) int {
	if cost, ok := r.Context().Value(contextKeyCallCost).(int); ok {
		return cost
	}
	return 1
}
