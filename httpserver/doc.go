/*
Package httpserver hosts the registry API and its operational endpoints.

A Server mounts any number of RouteRegistrar handlers on a chi router and adds:

  - /livez and /readyz health checks
  - /drain and /undrain to take the instance out of load balancer rotation
  - /debug/pprof when EnablePprof is set

Every request is logged with go-utils httplogger and counted in the Prometheus
HTTP collectors, labelled by route pattern. Metrics are served on a separate
listen address.

# Usage

	handler := registryhandler.NewHandler(reg, checkpointer, auth, logger)
	srv, err := httpserver.New(cfg, handler)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver
