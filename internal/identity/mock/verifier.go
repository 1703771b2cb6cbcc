package identitymock

import (
	"context"

	"github.com/healthfolio/tracker-manager/internal/identity"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type VerifierOption func(*Verifier)

// Verifier resolves assertions through a fixed table.
type Verifier struct {
	subjects  map[string]string
	verifyErr error
}

func WithSubject(assertion, subject string) VerifierOption {
	return func(v *Verifier) { v.subjects[assertion] = subject }
}

func WithVerifyError(err error) VerifierOption {
	return func(v *Verifier) { v.verifyErr = err }
}

var _ = identity.Verifier(&Verifier{})

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		subjects: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

func (v *Verifier) Verify(_ context.Context, assertion string) (string, error) {
	if v.verifyErr != nil {
		return "", v.verifyErr
	}
	subject, ok := v.subjects[assertion]
	if !ok {
		return "", serviceerr.ErrUnauthenticated
	}
	return subject, nil
}
