// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the readiness multiplexer (Pair) the io-wait
// core registers fds against and drains in its wait loop. On Linux it is
// backed by two one-shot epoll instances; on other platforms it is an
// unsupported stub, since the rest of the module is epoll-specific.
package reactor
