package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.RequireAuth(c.handleCreateWorkflow))
	mux.HandleFunc("GET /api/workflows/recent", c.RequireAuth(c.handleListRecent))
	mux.HandleFunc("GET /api/workflows/relevant", c.RequireAuth(c.handleListRelevant))
	mux.HandleFunc("GET /api/workflows/{id}", c.RequireAuth(c.handleGetWorkflowById))
	mux.HandleFunc("DELETE /api/workflows/{id}", c.RequireAuth(c.handleReleaseWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/sync", c.RequireAuth(c.handleSyncWorkflow))
	mux.HandleFunc("GET /api/workflows/{id}/events", c.RequireAuth(c.handleGetWorkflowEvents))
	mux.HandleFunc("GET /api/workflows/{id}/pending", c.RequireAuth(c.handleGetPendingExecutions))
	mux.HandleFunc("POST /api/workflows/{id}/execute", c.RequireAuth(c.handleExecuteActivity))
	mux.HandleFunc("PUT /api/workflows/{id}/relevant", c.RequireAuth(c.handleMarkRelevant))
	mux.HandleFunc("DELETE /api/workflows/{id}/relevant", c.RequireAuth(c.handleUnmarkRelevant))
}

func (c *UsersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", c.RequireAuth(c.handleGetUsers))
	mux.HandleFunc("POST /api/users", c.RequireAuth(c.handleCreateUser))
	mux.HandleFunc("GET /api/users/{username}", c.RequireAuth(c.handleGetUserByUsername))
}
