// Package health checks the daemon's dependencies and feeds the results
// into the metrics health registry.
//
// A Checker performs one check: HTTPChecker hits an HTTP endpoint (the
// browser's DevTools /json/version via NewCDPChecker) and FuncChecker wraps
// any func(ctx) error, such as a store read. A Monitor runs named checkers
// on an interval; a component turns unhealthy after Config.Retries
// consecutive failures and healthy again on the first success.
package health
