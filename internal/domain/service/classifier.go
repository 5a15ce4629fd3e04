package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/jonny/switchyard/internal/domain/model"
)

type statusCoder interface {
	StatusCode() int
}

type requestIDer interface {
	RequestID() string
}

type statusClass struct {
	typ       model.ErrorType
	retryable bool
}

var statusTable = map[int]statusClass{
	401: {model.ErrorAuthentication, false},
	402: {model.ErrorQuotaExceeded, false},
	429: {model.ErrorRateLimit, true},
	400: {model.ErrorInvalidRequest, false},
	404: {model.ErrorInvalidRequest, false},
	415: {model.ErrorInvalidRequest, false},
	422: {model.ErrorInvalidRequest, false},
	500: {model.ErrorServer, true},
	502: {model.ErrorServer, true},
	503: {model.ErrorServer, true},
	504: {model.ErrorServer, true},
}

// Classify maps a failed provider call to ErrorDetails. It never panics and
// never returns nil; anything it cannot introspect is reported as unknown.
func Classify(err error) (details *model.ErrorDetails) {
	defer func() {
		if r := recover(); r != nil {
			details = &model.ErrorDetails{
				Type:    model.ErrorUnknown,
				Message: fmt.Sprintf("unclassifiable error: %v", r),
			}
		}
	}()

	if err == nil {
		return &model.ErrorDetails{Type: model.ErrorUnknown, Message: "no error"}
	}

	var existing *model.ErrorDetails
	if errors.As(err, &existing) && existing != nil {
		out := *existing
		return &out
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() != 0 {
		d := classifyStatus(sc.StatusCode(), err)
		var rid requestIDer
		if errors.As(err, &rid) {
			d.RequestID = rid.RequestID()
		}
		return d
	}

	if errors.Is(err, context.Canceled) {
		return model.NewErrorDetails(model.ErrorUnknown, false, err)
	}
	if isTimeout(err) {
		return model.NewErrorDetails(model.ErrorTimeout, true, err)
	}
	if isConnectionFailure(err) {
		return model.NewErrorDetails(model.ErrorNetwork, true, err)
	}
	return model.NewErrorDetails(model.ErrorUnknown, false, err)
}

func classifyStatus(status int, err error) *model.ErrorDetails {
	class, ok := statusTable[status]
	if !ok {
		class = statusClass{typ: model.ErrorUnknown, retryable: status >= 500}
	}
	d := model.NewErrorDetails(class.typ, class.retryable, err)
	d.StatusCode = status
	return d
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return true
	}
	return false
}
