package util

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"

	"github.com/jackc/pgx/v5"

	"todonotify/pkg/circuitbreaker"
)

// ClassifyError 把错误归类为指标 label
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "not_found"
	}

	// SMTP 协议错误：4xx 临时失败，5xx 永久失败
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return "smtp_rejected"
		}
		return "smtp_temporary"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection") {
		return "connection_error"
	}
	if strings.Contains(errStr, "template") {
		return "template_error"
	}

	return "unknown_error"
}
