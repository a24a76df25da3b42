package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kevin07696/automated-charge/internal/domain"
)

// Exit codes
const (
	exitOK             = 0
	exitFailure        = 1
	exitReconciliation = 2 // money moved but the ledger is incomplete
)

// exitError carries a process exit code for a result that was already printed.
// err is reported alongside when the run also failed for another reason.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("exit status %d: %v", e.code, e.err)
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCodeFor maps a processor error to an exit code
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.RequiresReconciliation(err):
		return exitReconciliation
	default:
		return exitFailure
	}
}

// result is the JSON document printed for every processed request
type result struct {
	OK          bool                `json:"ok"`
	Repeat      *bool               `json:"repeat,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	ErrorCode   domain.ErrorCode    `json:"error_code,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Reconcile   bool                `json:"reconcile,omitempty"`
	Line        int                 `json:"line,omitempty"`
}

func newResult(txn *domain.Transaction, err error) result {
	r := result{OK: err == nil, Transaction: txn}
	if err == nil {
		return r
	}

	r.ErrorCode = domain.GetErrorCode(err)
	r.Reason = domain.Reason(err)
	var recErr *domain.ReconciliationError
	if errors.As(err, &recErr) {
		r.Reconcile = true
		r.Transaction = recErr.Transaction
		r.Reason = recErr.Error()
	}
	return r
}

// repeatResult reports a detected repeat as a successful check naming the
// earlier transaction; any other error is a failed check
func repeatResult(repeat bool, err error) result {
	if err != nil && !repeat {
		return newResult(nil, err)
	}
	r := result{OK: true, Repeat: &repeat}
	if repeat {
		r.ErrorCode = domain.GetErrorCode(err)
		r.Reason = domain.Reason(err)
	}
	return r
}

func writeResult(w io.Writer, r result) error {
	return json.NewEncoder(w).Encode(r)
}

// readRequest decodes one charge request from path, or stdin when path is "-" or empty
func readRequest(path string) (domain.ChargeRequest, error) {
	var in io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.ChargeRequest{}, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		in = f
	}
	return decodeRequest(in)
}

func decodeRequest(r io.Reader) (domain.ChargeRequest, error) {
	var req domain.ChargeRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return domain.ChargeRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
