// Package resolver turns a decoded request into the response the responder
// sends back. Resolution is a pure function of the request, the current
// records table, and the configured suffix.
package resolver

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/domain"
)

// DefaultAddr answers A queries inside the suffix that match no record.
var DefaultAddr = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// ErrNoAnswer is matched by every *NoAnswerError.
var ErrNoAnswer = errors.New("no answer")

// NoAnswerError reports a lookup whose response carried no answers.
type NoAnswerError struct {
	Host  string
	RCode domain.RCode
}

func (e *NoAnswerError) Error() string {
	return fmt.Sprintf("no answer for %s: response code %s", e.Host, e.RCode)
}

func (e *NoAnswerError) Unwrap() error { return ErrNoAnswer }

// Lookuper is the read side of a records table.
type Lookuper interface {
	Lookup(name string) (netip.Addr, bool)
}

// Resolve builds the response to request. It never fails: every outcome is
// expressed through the response code.
func Resolve(request domain.Message, store Lookuper, suffix string) domain.Message {
	return resolve(request, store, suffix, log.NewNoopLogger())
}

// ResolveName answers an A query for host the same way a network client
// would be answered, and returns the address of the first answer.
func ResolveName(host string, store Lookuper, suffix string) (netip.Addr, error) {
	return resolveName(host, store, suffix, log.NewNoopLogger())
}

func resolve(request domain.Message, store Lookuper, suffix string, logger log.Logger) (response domain.Message) {
	id := request.Header.ID
	response = domain.Message{
		Header: domain.Header{
			ID:               id,
			Response:         true,
			RecursionDesired: request.Header.RecursionDesired,
		},
	}
	defer response.SyncCounts()

	if len(request.Questions) == 0 {
		response.Header.RCode = domain.RCodeNotImp
		return response
	}

	q := request.Questions[0]
	response.Questions = append(response.Questions, q)

	if request.Header.Response {
		logger.Warn(map[string]any{"id": id}, "Received response as question")
		response.Header.RCode = domain.RCodeNotImp
		return response
	}

	if request.Header.Opcode != domain.OpcodeQuery {
		logger.Warn(map[string]any{"id": id, "opcode": request.Header.Opcode}, "Received non-zero opcode")
		response.Header.RCode = domain.RCodeNotImp
		return response
	}

	if !strings.HasSuffix(q.Name, suffix) {
		logger.Warn(map[string]any{"id": id, "name": q.Name, "suffix": suffix}, "Unsupported domain")
		response.Header.RCode = domain.RCodeServFail
		return response
	}

	switch q.Type {
	case domain.RRTypeA:
		addr := lookupOrDefault(q.Name, store)
		response.Answers = append(response.Answers, domain.Record{
			Domain: q.Name,
			Type:   domain.RRTypeA,
			Class:  domain.RRClassIN,
			TTL:    0,
			Addr:   addr,
		})
	case domain.RRTypeAAAA, domain.RRTypeCNAME, domain.RRTypeMX, domain.RRTypeNS, domain.RRTypeSOA:
		logger.Debug(map[string]any{"id": id, "question": q.String()}, "Received request for undefined query type")
		response.Header.RCode = domain.RCodeNoError
	default:
		logger.Warn(map[string]any{"id": id, "question": q.String()}, "Received query of unsupported type")
		response.Header.RCode = domain.RCodeServFail
	}

	return response
}

func lookupOrDefault(name string, store Lookuper) netip.Addr {
	if store != nil {
		if addr, ok := store.Lookup(name); ok {
			return addr
		}
	}
	return DefaultAddr
}

func resolveName(host string, store Lookuper, suffix string, logger log.Logger) (netip.Addr, error) {
	response := resolve(domain.NewQuery(0, host, domain.RRTypeA), store, suffix, logger)
	addr, ok := response.FirstAddr()
	if !ok {
		return netip.Addr{}, &NoAnswerError{Host: host, RCode: response.Header.RCode}
	}
	return addr, nil
}

// Resolver binds the configured suffix and a logger for the server loop.
type Resolver struct {
	suffix string
	logger log.Logger
}

// Options configures a Resolver.
type Options struct {
	Suffix string
	Logger log.Logger
}

// NewResolver returns a Resolver for opts.
func NewResolver(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Resolver{suffix: opts.Suffix, logger: logger}
}

// Suffix returns the domain suffix this resolver answers for.
func (r *Resolver) Suffix() string { return r.suffix }

// Resolve builds the response to request against store.
func (r *Resolver) Resolve(request domain.Message, store Lookuper) domain.Message {
	response := resolve(request, store, r.suffix, r.logger)
	r.logger.Debug(map[string]any{
		"id":      response.Header.ID,
		"rcode":   response.Header.RCode.String(),
		"answers": len(response.Answers),
	}, "Resolved request")
	return response
}

// ResolveName resolves host against store.
func (r *Resolver) ResolveName(host string, store Lookuper) (netip.Addr, error) {
	return resolveName(host, store, r.suffix, r.logger)
}
