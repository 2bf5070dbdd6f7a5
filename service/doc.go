// Package service hosts the matching engine: the only write entry point
// into the books. All coordination between the domain, the event bus, and
// the order pool happens here.
package service
