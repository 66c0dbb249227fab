package dispatch

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/keys"
)

// Request is a unit of work for the dispatcher
type Request interface {
	RequestID() string
	isRequest()
}

// GetRequest reads the entry stored at Location
type GetRequest struct {
	ID       string
	Location string
}

// PutRequest writes Entry under a key derived from Signature once the signature verifies
type PutRequest struct {
	ID        string
	Entry     entry.Entry
	Signature string
	PublicKey string
}

func (r *GetRequest) RequestID() string { return r.ID }
func (r *PutRequest) RequestID() string { return r.ID }

func (*GetRequest) isRequest() {}
func (*PutRequest) isRequest() {}

// Response is the outcome of one Request, carrying the request's ID
type Response interface {
	ResponseID() string
	// Err returns the failure as a grpc status error, or nil on success
	Err() error
	isResponse()
}

// GetResult answers a GetRequest. Exactly one of Entry and Error is set.
type GetResult struct {
	ID    string
	Entry *entry.Entry
	Code  codes.Code
	Error string
}

// PutResult answers a PutRequest. Key is set on success and on failure.
type PutResult struct {
	ID    string
	Key   keys.StoreKey
	Code  codes.Code
	Error string
}

func (r *GetResult) ResponseID() string { return r.ID }
func (r *PutResult) ResponseID() string { return r.ID }

func (r *GetResult) Err() error { return statusErr(r.Code, r.Error) }
func (r *PutResult) Err() error { return statusErr(r.Code, r.Error) }

func (*GetResult) isResponse() {}
func (*PutResult) isResponse() {}

func statusErr(code codes.Code, msg string) error {
	if code == codes.OK && msg == "" {
		return nil
	}
	if code == codes.OK {
		code = codes.Unknown
	}
	return status.Error(code, msg)
}
