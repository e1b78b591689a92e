package server

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Get("/status", s.handleStatusList)
	s.router.Get("/status/{job}", s.handleStatusJob)
	s.router.Get("/status/{job}/requests", s.handleStatusRequests)
}
