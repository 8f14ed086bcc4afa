// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic to keep the
// ingestion pipeline healthy when upstream catalog sources or the push gateway fail.
//
// The package supports:
//   - Circuit breakers for outbound calls (catalog source, push gateway)
//   - Retry logic with exponential backoff, jitter, and Retry-After hints
//
// Usage Example:
//
//	cb, err := circuitbreaker.New(circuitbreaker.Config{
//	    Name:             "catalog",
//	    FailureThreshold: 5,
//	    SuccessThreshold: 2,
//	    Timeout:          30 * time.Second,
//	})
//	err = cb.Execute(func() error {
//	    return callExternalService()
//	})
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return performOperation()
//	})
package resilience
