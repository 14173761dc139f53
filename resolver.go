package netio

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

// resolveRequest mirrors the original's embedded resolve request, but
// recovers its owning task through an explicit back-pointer instead of
// container-of arithmetic (spec.md §9, Design Notes).
type resolveRequest struct {
	endpointURI     string
	resolvedAddress *net.UDPAddr
	success         bool
	owner           *task
}

// resolverBridge couples task submission to a background DNS resolver. It is
// constructed together with the loop and caches successful lookups in a
// ristretto cache keyed by hostname; the teacher's go.mod declares ristretto
// but never wires it up, so this is the first real consumer of it.
type resolverBridge struct {
	loop  *EventLoop
	cache *ristretto.Cache
	ttl   time.Duration
}

func newResolverBridge(loop *EventLoop, cacheSize int64, ttl time.Duration) (*resolverBridge, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &resolverBridge{loop: loop, cache: cache, ttl: ttl}, nil
}

// asyncResolve returns false if resolution completed synchronously (req's
// fields are already populated), or true if the request was handed to a
// background goroutine; completion will call loop.handleResolved from that
// goroutine.
func (r *resolverBridge) asyncResolve(req *resolveRequest) bool {
	host, port, err := splitEndpointURI(req.endpointURI)
	if err != nil {
		log.Error().Msgf("netio: resolver: malformed endpoint %q: %+v", req.endpointURI, err)
		req.success = false
		return false
	}

	if ip := net.ParseIP(host); ip != nil {
		req.resolvedAddress = &net.UDPAddr{IP: ip, Port: port}
		req.success = true
		return false
	}

	if cached, ok := r.cache.Get(host); ok {
		req.resolvedAddress = &net.UDPAddr{IP: cached.(net.IP), Port: port}
		req.success = true
		return false
	}

	go r.resolveAsync(req, host, port)
	return true
}

func (r *resolverBridge) resolveAsync(req *resolveRequest, host string, port int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ipAddrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(ipAddrs) == 0 {
		log.Error().Msgf("netio: resolver: %v: %q: %+v", errUnresolvable, host, err)
		req.success = false
		r.loop.handleResolved(req)
		return
	}

	ip := ipAddrs[0].IP
	r.cache.SetWithTTL(host, ip, 1, r.ttl)
	req.resolvedAddress = &net.UDPAddr{IP: ip, Port: port}
	req.success = true
	r.loop.handleResolved(req)
}

// splitEndpointURI accepts both a bare host:port pair and a scheme-qualified
// endpoint URI like "rtp://localhost:5000".
func splitEndpointURI(endpointURI string) (host string, port int, err error) {
	hostport := endpointURI
	if u, perr := url.Parse(endpointURI); perr == nil && u.Host != "" {
		hostport = u.Host
	}
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, errUnknownEndpoint
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, errUnknownEndpoint
	}
	return h, portNum, nil
}
