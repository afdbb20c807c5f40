package http

import (
	"net/http"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/domain"
)

// RouterDeps collects everything the HTTP surface needs.
type RouterDeps struct {
	Auth     *AuthHandler
	Orders   *OrderHandler
	Admin    *AdminHandler
	Operator *OperatorHandler
	Catalog  *CatalogHandler
	Files    *FileHandler
	AuthN    Authenticator
	Logger   logger.Logger
}

// NewRouter builds the full route table. Three nested scopes: public,
// authenticated, and role-restricted (admin, operator).
func NewRouter(deps RouterDeps) http.Handler {
	authed := AuthMiddleware(deps.AuthN)
	admin := RequireRole(domain.RoleAdmin)
	operator := RequireRole(domain.RoleOperator)

	mux := http.NewServeMux()

	// Public.
	mux.HandleFunc("POST /auth/register", deps.Auth.Register)
	mux.HandleFunc("POST /auth/login", deps.Auth.Login)
	mux.HandleFunc("GET /materials", deps.Catalog.ListMaterials)
	mux.HandleFunc("GET /files/download", deps.Files.Download)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Authenticated.
	mux.Handle("POST /auth/logout", authed(http.HandlerFunc(deps.Auth.Logout)))
	mux.Handle("GET /auth/me", authed(http.HandlerFunc(deps.Auth.Me)))
	mux.Handle("POST /orders", authed(http.HandlerFunc(deps.Orders.CreateOrder)))
	mux.Handle("GET /orders", authed(http.HandlerFunc(deps.Orders.ListOrders)))
	mux.Handle("GET /orders/{number}", authed(http.HandlerFunc(deps.Orders.GetOrder)))
	mux.Handle("GET /orders/{number}/history", authed(http.HandlerFunc(deps.Orders.GetHistory)))
	mux.Handle("POST /orders/{number}/payment-proof", authed(http.HandlerFunc(deps.Orders.SubmitPaymentProof)))

	// Admin console.
	mux.Handle("GET /admin/orders", authed(admin(http.HandlerFunc(deps.Admin.ListOrders))))
	mux.Handle("GET /admin/orders/{number}", authed(admin(http.HandlerFunc(deps.Admin.GetOrder))))
	mux.Handle("GET /admin/operators", authed(admin(http.HandlerFunc(deps.Admin.ListOperators))))
	mux.Handle("POST /admin/orders/{number}/approve", authed(admin(http.HandlerFunc(deps.Admin.ApprovePayment))))
	mux.Handle("POST /admin/orders/{number}/reject", authed(admin(http.HandlerFunc(deps.Admin.RejectPayment))))
	mux.Handle("POST /admin/orders/{number}/cancel", authed(admin(http.HandlerFunc(deps.Admin.CancelOrder))))
	mux.Handle("POST /admin/orders/{number}/assign", authed(admin(http.HandlerFunc(deps.Admin.AssignOperator))))
	mux.Handle("POST /admin/orders/{number}/deliver", authed(admin(http.HandlerFunc(deps.Admin.MarkDelivered))))

	// Operator console.
	mux.Handle("GET /operator/jobs", authed(operator(http.HandlerFunc(deps.Operator.ListJobs))))
	mux.Handle("POST /operator/jobs/{number}/advance", authed(operator(http.HandlerFunc(deps.Operator.AdvanceJob))))

	handler := LoggingMiddleware(deps.Logger)(mux)
	handler = RecoveryMiddleware(deps.Logger)(handler)
	return handler
}
